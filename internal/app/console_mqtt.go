package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/config"
)

// FormatEstimate renders one estimate as a console line.
func FormatEstimate(e baro.Estimate) string {
	cal := " "
	if e.Calibrated {
		cal = "*"
	}
	return fmt.Sprintf(
		"[BARO] t=%d.%03d p=%9.2fPa T=%5.1fC alt=%7.1fm%s std=%7.1fm climb=%+5.2fm/s 4s=%+5.2fm/s noise=%4.1fPa",
		e.Time, e.MsTime, e.PressurePa(), e.Celsius(), e.AltitudeM(), cal,
		e.StdAltitudeM(), e.ClimbMPS(), e.Climb4sMPS(), e.NoisePa(),
	)
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Estimates
	estToken := client.Subscribe(cfg.TopicEstimate, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e baro.Estimate
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("console: estimate unmarshal error: %v", err)
			return
		}
		fmt.Println(FormatEstimate(e))
	})
	estToken.Wait()
	if estToken.Error() != nil {
		return estToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicEstimate)

	// Tone changes
	toneToken := client.Subscribe(cfg.TopicTone, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t ToneMessage
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("console: tone unmarshal error: %v", err)
			return
		}
		if t.Period == 0 {
			fmt.Println("[TONE] silent")
			return
		}
		fmt.Printf("[TONE] note=0x%02X vol=%d period=%dms fill=%dms\n", t.Note, t.Volume, t.Period, t.Fill)
	})
	toneToken.Wait()
	if toneToken.Error() != nil {
		return toneToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTone)

	// Sentences
	if cfg.Verbose {
		nmeaToken := client.Subscribe(cfg.TopicNMEA, 0, func(_ mqtt.Client, msg mqtt.Message) {
			fmt.Printf("[NMEA] %s\n", strings.TrimRight(string(msg.Payload()), "\r\n"))
		})
		nmeaToken.Wait()
		if nmeaToken.Error() != nil {
			return nmeaToken.Error()
		}
		log.Printf("console: subscribed to %s", cfg.TopicNMEA)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
