package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/baro_vario/internal/baro"
	"github.com/relabs-tech/baro_vario/internal/config"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Live keeps the latest estimate and fans every update out to the
// connected WebSocket clients. Slow clients miss updates.
type Live struct {
	mu      sync.RWMutex
	last    baro.Estimate
	have    bool
	clients map[chan baro.Estimate]struct{}
}

// NewLive returns an empty Live.
func NewLive() *Live {
	return &Live{clients: make(map[chan baro.Estimate]struct{})}
}

// Update stores e and offers it to every client.
func (l *Live) Update(e baro.Estimate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last, l.have = e, true
	for ch := range l.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

// Latest returns the last estimate, if any.
func (l *Live) Latest() (baro.Estimate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last, l.have
}

func (l *Live) subscribe() chan baro.Estimate {
	ch := make(chan baro.Estimate, 4)
	l.mu.Lock()
	l.clients[ch] = struct{}{}
	l.mu.Unlock()
	return ch
}

func (l *Live) unsubscribe(ch chan baro.Estimate) {
	l.mu.Lock()
	delete(l.clients, ch)
	l.mu.Unlock()
}

// HandleAPI serves the latest estimate as JSON.
func (l *Live) HandleAPI(w http.ResponseWriter, r *http.Request) {
	e, ok := l.Latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(e); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// HandleWS streams estimates to one WebSocket client, starting with the
// latest one.
func (l *Live) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	ch := l.subscribe()
	defer l.unsubscribe(ch)

	// The client never sends anything; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("web: websocket error: %v", err)
				}
				return
			}
		}
	}()

	if e, ok := l.Latest(); ok {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
	for {
		select {
		case <-closed:
			return
		case e := <-ch:
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}

// Routes registers the API, the stream and the static files on mux.
func (l *Live) Routes(mux *http.ServeMux, staticDir string) {
	mux.HandleFunc("/api/baro", l.HandleAPI)
	mux.HandleFunc("/ws", l.HandleWS)
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))
}

func RunWeb() error {
	cfg := config.Get()
	live := NewLive()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to estimates
	token := client.Subscribe(cfg.TopicEstimate, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var e baro.Estimate
		if err := json.Unmarshal(msg.Payload(), &e); err != nil {
			log.Printf("web: estimate unmarshal error: %v", err)
			return
		}
		live.Update(e)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicEstimate)

	// 3) API, live stream and static files from ./web
	mux := http.NewServeMux()
	live.Routes(mux, "web")

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
