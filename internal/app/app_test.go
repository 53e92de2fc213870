package app

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/vario"
)

type published struct {
	topic   string
	payload []byte
}

func testPublisher() (*Publisher, *[]published) {
	var got []published
	p := &Publisher{
		Publish:       func(topic string, payload []byte) { got = append(got, published{topic, payload}) },
		TopicEstimate: "baro/estimate",
		TopicTone:     "baro/tone",
		TopicNMEA:     "baro/nmea",
	}
	return p, &got
}

func TestPublisherToneOnlyOnChange(t *testing.T) {
	p, got := testPublisher()
	e := baro.Estimate{Pressure: 4 * 90000, ClimbRate: 150}
	tone := vario.ToneFor(e.ClimbRate, 4)

	p.Observe(e, tone)
	p.Observe(e, tone)
	p.Observe(e, vario.Tone{})

	var topics []string
	for _, m := range *got {
		topics = append(topics, m.topic)
	}
	want := "baro/estimate baro/tone baro/estimate baro/estimate baro/tone"
	if strings.Join(topics, " ") != want {
		t.Fatalf("topics = %v, want %s", topics, want)
	}

	var est baro.Estimate
	if err := json.Unmarshal((*got)[0].payload, &est); err != nil {
		t.Fatal(err)
	}
	if est.Pressure != e.Pressure || est.ClimbRate != e.ClimbRate {
		t.Fatalf("estimate round trip = %+v", est)
	}

	var msg ToneMessage
	if err := json.Unmarshal((*got)[1].payload, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Packed != tone.Packed() || msg.Period != tone.Period {
		t.Fatalf("tone message = %+v, tone %+v", msg, tone)
	}
}

func TestPublisherSentenceCopies(t *testing.T) {
	p, got := testPublisher()
	line := []byte("$PGRMZ,1,f,3*00\r\n")
	p.Sentence(line)
	line[1] = 'X'
	if (*got)[0].topic != "baro/nmea" || string((*got)[0].payload) != "$PGRMZ,1,f,3*00\r\n" {
		t.Fatalf("published %q on %s", (*got)[0].payload, (*got)[0].topic)
	}
}

func TestFormatEstimate(t *testing.T) {
	s := FormatEstimate(baro.Estimate{
		Time:        1780317319,
		MsTime:      250,
		Pressure:    4 * 101325,
		Temperature: 215,
		Altitude:    1234,
		StdAltitude: 1200,
		ClimbRate:   -67,
		Calibrated:  true,
	})
	for _, want := range []string{"t=1780317319.250", "101325.00Pa", "21.5C", "123.4m*", "-0.67m/s"} {
		if !strings.Contains(s, want) {
			t.Errorf("%q missing %q", s, want)
		}
	}
}

func TestVarioLines(t *testing.T) {
	if got := VarioLines(baro.Estimate{}, false); got[1] != "Waiting..." {
		t.Fatalf("no data lines = %v", got)
	}
	got := VarioLines(baro.Estimate{ClimbRate: 250, ClimbRate4s: -30, Altitude: 12344, Pressure: 4 * 87654, Temperature: 123}, true)
	want := []string{"+2.5 m/s", "4s: -0.3 m/s", "Alt: 1234m", "876.5hPa 12C"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRenderDrawsPixels(t *testing.T) {
	img := RenderVario(baro.Estimate{ClimbRate: 100}, true)
	if img.Bounds() != image.Rect(0, 0, 128, 64) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	on := 0
	for _, b := range img.Pix {
		if b != 0 {
			on++
		}
	}
	if on == 0 {
		t.Fatal("nothing drawn")
	}
	if RenderSplash().BitAt(0, 0) != image1bit.Off {
		t.Fatal("splash corner not blank")
	}
}

func TestLiveAPI(t *testing.T) {
	l := NewLive()
	rec := httptest.NewRecorder()
	l.HandleAPI(rec, httptest.NewRequest(http.MethodGet, "/api/baro", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("empty status = %d", rec.Code)
	}

	l.Update(baro.Estimate{Pressure: 400000})
	rec = httptest.NewRecorder()
	l.HandleAPI(rec, httptest.NewRequest(http.MethodGet, "/api/baro", nil))
	var e baro.Estimate
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Pressure != 400000 {
		t.Fatalf("api pressure = %d", e.Pressure)
	}
}

func TestLiveWebSocketStream(t *testing.T) {
	l := NewLive()
	l.Update(baro.Estimate{Pressure: 1})

	mux := http.NewServeMux()
	l.Routes(mux, t.TempDir())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var e baro.Estimate
	if err := conn.ReadJSON(&e); err != nil || e.Pressure != 1 {
		t.Fatalf("first message = %+v, %v", e, err)
	}

	// The handler subscribes before sending the latest estimate.
	l.Update(baro.Estimate{Pressure: 2})
	if err := conn.ReadJSON(&e); err != nil || e.Pressure != 2 {
		t.Fatalf("streamed message = %+v, %v", e, err)
	}
}
