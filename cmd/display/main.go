package main

import (
	"log"

	"github.com/relabs-tech/baro_vario/internal/app"
	"github.com/relabs-tech/baro_vario/internal/config"
)

func main() {
	log.Println("starting baro-vario display (MQTT subscriber)")

	// Load configuration
	if err := config.InitGlobal("vario_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
