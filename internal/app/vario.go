// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/config"
	"github.com/relabs-tech/baro_vario/internal/gps"
	"github.com/relabs-tech/baro_vario/internal/metrics"
	"github.com/relabs-tech/baro_vario/internal/output"
	"github.com/relabs-tech/baro_vario/internal/sensors"
	"github.com/relabs-tech/baro_vario/internal/timesync"
	"github.com/relabs-tech/baro_vario/internal/vario"
)

// ToneMessage is the JSON published on the tone topic.
type ToneMessage struct {
	Packed uint8  `json:"packed"`
	Volume uint8  `json:"volume"`
	Note   uint8  `json:"note"`
	Period uint16 `json:"period_ms"`
	Fill   uint16 `json:"fill_ms"`
}

// Publisher forwards estimates, tone changes and sentences to MQTT.
type Publisher struct {
	Publish func(topic string, payload []byte)

	TopicEstimate string
	TopicTone     string
	TopicNMEA     string

	last    vario.Tone
	hasLast bool
}

// NewPublisher publishes through a connected paho client without waiting
// for acknowledgement.
func NewPublisher(client mqtt.Client, cfg *config.Config) *Publisher {
	return &Publisher{
		Publish: func(topic string, payload []byte) {
			client.Publish(topic, 0, false, payload)
		},
		TopicEstimate: cfg.TopicEstimate,
		TopicTone:     cfg.TopicTone,
		TopicNMEA:     cfg.TopicNMEA,
	}
}

// Observe implements baro.Observer. The tone is only published on change.
func (p *Publisher) Observe(e baro.Estimate, t vario.Tone) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("vario: estimate marshal error: %v", err)
		return
	}
	p.Publish(p.TopicEstimate, data)

	if p.hasLast && t == p.last {
		return
	}
	p.last, p.hasLast = t, true
	data, err = json.Marshal(ToneMessage{
		Packed: t.Packed(),
		Volume: t.Volume,
		Note:   t.Note,
		Period: t.Period,
		Fill:   t.Fill,
	})
	if err != nil {
		log.Printf("vario: tone marshal error: %v", err)
		return
	}
	p.Publish(p.TopicTone, data)
}

// Sentence publishes one NMEA line. The emitter reuses its buffer, so the
// line is copied.
func (p *Publisher) Sentence(line []byte) {
	p.Publish(p.TopicNMEA, append([]byte(nil), line...))
}

// RunVario runs the barometer task with GPS alignment, sentence output,
// MQTT publishing and optional metrics until SIGINT/SIGTERM.
func RunVario() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := timesync.NewSync()

	sensor, bus, err := sensors.Open(cfg, time.Now)
	if err != nil {
		return fmt.Errorf("failed to open barometer: %w", err)
	}
	if c, ok := bus.(io.Closer); ok {
		defer c.Close()
	}

	task := baro.NewTask(sensor, bus, clock)
	task.Player = &vario.LogPlayer{}
	task.Knob = func() uint8 { return cfg.VarioKnob }

	// GPS
	if cfg.GPSSerialPort != "" {
		port, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			return err
		}
		defer port.Close()
		log.Printf("vario: GPS serial port opened on %s at %d baud", cfg.GPSSerialPort, cfg.GPSBaudRate)

		task.Positions = gps.NewBuffer(gps.DefaultDepth)
		reader := gps.NewReader(task.Positions, clock)
		reader.Latency = time.Duration(cfg.GPSLatencyMs) * time.Millisecond
		go func() {
			if err := reader.Run(ctx, port); err != nil && ctx.Err() == nil {
				log.Printf("vario: GPS reader stopped: %v", err)
			}
		}()
	} else {
		log.Println("vario: no GPS port, altitude stays uncalibrated")
	}

	// Sentence output
	console, consoleCloser, err := output.OpenConsole(cfg.ConsoleSerialPort, cfg.ConsoleBaudRate)
	if err != nil {
		return err
	}
	if consoleCloser != nil {
		defer consoleCloser.Close()
	}
	emitter := output.NewEmitter(console, nil, cfg.Verbose)
	emitter.Battery = func() uint32 { return cfg.BatteryMV }

	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open sentence log: %w", err)
		}
		defer f.Close()
		queue := output.NewLogQueue(f, cfg.LogQueueBytes)
		emitter.Log = queue
		go func() {
			if err := queue.Run(ctx); err != nil {
				log.Printf("vario: sentence log stopped: %v", err)
			}
		}()
		log.Printf("vario: logging sentences to %s", cfg.LogPath)
	}
	task.Sink = emitter

	// MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDVario)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("vario: connected to MQTT broker at %s", cfg.MQTTBroker)

	pub := NewPublisher(client, cfg)
	task.Observers = append(task.Observers, pub)
	emitter.Taps = append(emitter.Taps, pub.Sentence)

	// Metrics
	if cfg.MetricsPort > 0 {
		m := metrics.New()
		task.Observers = append(task.Observers, m)
		task.Faults = append(task.Faults, m)

		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.MetricsPort), Handler: mux}
		go func() {
			log.Printf("vario: metrics listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("vario: metrics server error: %v", err)
			}
		}()
		defer srv.Close()
	}

	err = task.Run(ctx)
	log.Println("vario: shutting down")
	return err
}
