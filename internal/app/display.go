package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/config"
	"github.com/relabs-tech/baro_vario/internal/sensors"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	est  baro.Estimate
	have bool
}

func (d *DisplayData) snapshot() (baro.Estimate, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.est, d.have
}

func RunDisplay() error {
	cfg := config.Get()

	bus, err := sensors.OpenBus(cfg.SensorI2CBus)
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on %s", bus)

	if err := dev.Draw(dev.Bounds(), RenderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicEstimate, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e baro.Estimate
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("display: estimate unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.est = e
		data.have = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicEstimate)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		e, have := data.snapshot()
		if err := dev.Draw(dev.Bounds(), RenderVario(e, have), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

func newFrame() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// VarioLines returns the four text lines shown for e.
func VarioLines(e baro.Estimate, have bool) []string {
	if !have {
		return []string{"Baro vario", "Waiting..."}
	}
	alt := fmt.Sprintf("Alt: %.0fm", e.AltitudeM())
	if e.Calibrated {
		alt += " *"
	}
	return []string{
		fmt.Sprintf("%+.1f m/s", e.ClimbMPS()),
		fmt.Sprintf("4s: %+.1f m/s", e.Climb4sMPS()),
		alt,
		fmt.Sprintf("%.1fhPa %.0fC", e.PressurePa()/100, e.Celsius()),
	}
}

// RenderVario draws the vario page for a 128x64 panel.
func RenderVario(e baro.Estimate, have bool) *image1bit.VerticalLSB {
	img, drawer := newFrame()
	lines := VarioLines(e, have)
	y := 13
	if !have {
		y = 26
	}
	for _, l := range lines {
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(l)
		y += 13
	}
	return img
}

// RenderSplash draws the start-up page.
func RenderSplash() *image1bit.VerticalLSB {
	img, drawer := newFrame()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawString("Baro Vario")

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawString("Waiting for")

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawString("sensor")

	return img
}
