package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"transcript-editor-service/internal/app"
	"transcript-editor-service/internal/observability/logging"
	"transcript-editor-service/internal/schema"
	"transcript-editor-service/internal/service/session"
)

const maxCommandBytes = 64 << 10

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, editor *session.Session, hub *Hub) http.Handler {
	r := chi.NewRouter()
	d := NewDispatcher(editor)

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if application != nil && !application.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("starting"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Session routes
	r.Route("/v1/session", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, editor.Snapshot())
		})
		r.Post("/commands", commandHandler(d))
		r.Get("/ws", wsHandler(hub, d, editor))
	})

	return r
}

func commandHandler(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd Command
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes))
		if err := dec.Decode(&cmd); err != nil {
			err = fmt.Errorf("%w: %v", schema.ErrInvalid, err)
			writeJSON(w, http.StatusBadRequest, withError(Reply{}, err))
			return
		}
		reply, err := d.Execute(r.Context(), cmd)
		if err != nil {
			writeJSON(w, statusFor(err), reply)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func wsHandler(hub *Hub, d *Dispatcher, editor *session.Session) http.HandlerFunc {
	log := logging.WithComponent("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		c := hub.attach(conn)
		if c == nil {
			return
		}
		defer hub.detach(c)

		hub.send(c, Message{Type: EventSnapshot, Payload: editor.Snapshot()})

		conn.SetReadLimit(maxCommandBytes)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("WebSocket read failed")
				}
				return
			}
			var cmd Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				err = fmt.Errorf("%w: %v", schema.ErrInvalid, err)
				hub.send(c, Message{Type: EventReply, Payload: withError(Reply{}, err)})
				continue
			}
			reply, err := d.Execute(r.Context(), cmd)
			if err != nil {
				log.Debug().Err(err).Str("command", cmd.Command).Msg("Command failed")
			}
			hub.send(c, Message{Type: EventReply, Payload: reply})
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
