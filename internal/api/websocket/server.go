package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fortuna/dubs/internal/runner"
)

// Event types sent over the run feed
const (
	EventRunStarted  = "run_started"
	EventStage       = "stage"
	EventProgress    = "progress"
	EventRunComplete = "run_complete"
	EventRunError    = "run_error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards are served from other origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one run lifecycle message
type Event struct {
	Type      string         `json:"type"`
	Stage     string         `json:"stage,omitempty"`
	Message   string         `json:"message,omitempty"`
	Current   int            `json:"current,omitempty"`
	Total     int            `json:"total,omitempty"`
	Result    *runner.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Feed upgrades requests to websocket clients of a hub
type Feed struct {
	hub *Hub
}

// NewFeed serves hub over websocket
func NewFeed(hub *Hub) *Feed {
	return &Feed{hub: hub}
}

// ServeHTTP attaches the caller to the run feed
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log().Warn("failed to upgrade connection", "err", err)
		return
	}

	client := &Client{
		hub:  f.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if !f.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Reporter broadcasts runner lifecycle callbacks as Events
type Reporter struct {
	hub *Hub
	now func() time.Time
}

// NewReporter returns a runner.Reporter that writes to hub
func NewReporter(hub *Hub) *Reporter {
	return &Reporter{hub: hub, now: time.Now}
}

func (r *Reporter) send(e Event) {
	e.Timestamp = r.now().UTC()
	data, err := json.Marshal(e)
	if err != nil {
		log().Warn("failed to encode run event", "type", e.Type, "err", err)
		return
	}
	r.hub.Broadcast(data)
}

func (r *Reporter) OnRunStart(spec runner.Spec) {
	msg := "full run"
	if spec.DryRun {
		msg = "dry run"
	}
	r.send(Event{Type: EventRunStarted, Message: msg})
}

func (r *Reporter) OnStage(name string, index int, total int) {
	r.send(Event{Type: EventStage, Stage: name, Current: index + 1, Total: total})
}

func (r *Reporter) OnProgress(message string, current int, total int) {
	r.send(Event{Type: EventProgress, Message: message, Current: current, Total: total})
}

func (r *Reporter) OnRunComplete(result *runner.Result) {
	r.send(Event{Type: EventRunComplete, Result: result})
}

func (r *Reporter) OnRunError(err error) {
	r.send(Event{Type: EventRunError, Error: err.Error()})
}
