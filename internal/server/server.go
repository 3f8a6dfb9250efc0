package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/san-kum/sirbox/internal/dynamo"
	"github.com/san-kum/sirbox/internal/metrics"
	"github.com/san-kum/sirbox/internal/sim"
)

const DefaultInterval = time.Second / 30

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Command is a perturbation sent by a client. X, Y and Tolerance locate an
// infect; Count sizes a reinit; On starts or stops a measure.
type Command struct {
	Type      string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Tolerance float64 `json:"tolerance"`
	Count     int     `json:"count"`
	On        bool    `json:"on"`
}

// Reply answers one Command.
type Reply struct {
	Type    string   `json:"type"`
	Command string   `json:"command,omitempty"`
	Message string   `json:"message,omitempty"`
	Hit     *bool    `json:"hit,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

type Point struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Infected bool    `json:"infected"`
}

// Frame is the state broadcast after every tick.
type Frame struct {
	Type      string            `json:"type"`
	Step      int               `json:"step"`
	Time      float64           `json:"time"`
	Running   bool              `json:"running"`
	Measuring bool              `json:"measuring"`
	Counts    dynamo.Counts     `json:"counts"`
	Particles []Point           `json:"particles"`
	Histogram metrics.Histogram `json:"histogram"`
}

type Server struct {
	eng       *sim.Guarded
	hub       *Hub
	particles int
	interval  time.Duration
	running   atomic.Bool
	logger    *slog.Logger
}

type Option func(*Server)

func WithInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New serves eng. particles is the population size used by reinit commands
// that do not carry a count.
func New(eng *sim.Guarded, particles int, opts ...Option) *Server {
	s := &Server{
		eng:       eng,
		particles: particles,
		interval:  DefaultInterval,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.logger)
	s.running.Store(true)
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// Run steps the engine on every tick while running and broadcasts a frame,
// until ctx is done.
func (s *Server) Run(ctx context.Context) {
	go s.hub.Run(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.running.Load() {
				s.eng.Step(0)
			}
			payload, err := json.Marshal(s.Frame())
			if err != nil {
				s.logger.Error("encoding frame", "err", err)
				continue
			}
			s.hub.Broadcast(ctx, payload)
		}
	}
}

func (s *Server) Frame() Frame {
	f := Frame{Type: "frame", Running: s.running.Load()}
	s.eng.Do(func(e *sim.Engine) {
		f.Step = e.Steps()
		f.Time = e.Time()
		f.Measuring = e.Measuring()
		f.Counts = e.Counts()
		f.Histogram = e.SpeedHistogram()
		views := e.Snapshot()
		f.Particles = make([]Point, len(views))
		for i, v := range views {
			f.Particles[i] = Point{X: v.Position.X, Y: v.Position.Y, Infected: v.Health == dynamo.Infected}
		}
	})
	return f
}

// Apply executes one command against the engine.
func (s *Server) Apply(cmd Command) Reply {
	r := Reply{Type: "ok", Command: cmd.Type}

	switch cmd.Type {
	case "pause":
		s.running.Store(false)
	case "resume":
		s.running.Store(true)
	case "step":
		n := max(cmd.Count, 1)
		for i := 0; i < n; i++ {
			s.eng.Step(0)
		}
	case "lift":
		s.eng.Lift()
	case "dampen":
		s.eng.Dampen()
	case "settle":
		s.eng.Settle()
	case "reinit":
		n := cmd.Count
		if n == 0 {
			n = s.particles
		}
		if err := s.eng.Reinitialize(n); err != nil {
			return errorReply(cmd, err)
		}
	case "infect":
		hit := s.eng.Infect(dynamo.Vec2{X: cmd.X, Y: cmd.Y}, cmd.Tolerance)
		r.Hit = &hit
	case "measure":
		s.eng.SetRunningMeasurement(cmd.On)
		if !cmd.On {
			v, err := s.eng.MeanSquaredVelocity()
			if err != nil {
				return errorReply(cmd, err)
			}
			r.Value = &v
		}
	default:
		return errorReply(cmd, fmt.Errorf("unknown command %q", cmd.Type))
	}

	s.logger.Debug("command applied", "type", cmd.Type)
	return r
}

func errorReply(cmd Command, err error) Reply {
	return Reply{Type: "error", Command: cmd.Type, Message: err.Error()}
}

// Handler exposes the websocket at /ws plus JSON and CSV reads of the
// current state.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/particles.csv", s.handleCSV)
	return mux
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := newClient(s, conn)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Frame())
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	healthy, infected := s.eng.PopulationSeries()
	writeJSON(w, map[string][]metrics.Sample{"healthy": healthy, "infected": infected})
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	if err := s.eng.ExportSnapshot(w); err != nil {
		s.logger.Error("exporting particles", "err", err)
	}
}
