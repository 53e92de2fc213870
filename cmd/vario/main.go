// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/baro_vario/internal/app"
	"github.com/relabs-tech/baro_vario/internal/config"
)

func main() {
	log.Println("starting baro-vario")

	// Load configuration
	if err := config.InitGlobal("vario_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunVario(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
