package callback

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkeevk/VKinder/internal/config"
	"github.com/jkeevk/VKinder/internal/vk"
)

// Server is the ops/webhook HTTP surface: the VK Callback API
// endpoint (an alternative to long polling), a health probe and the
// Prometheus metrics handler.
type Server struct {
	confirmation string
	secret       string
	events       chan<- vk.Event
	log          *slog.Logger
}

func NewServer(cfg *config.Config, events chan<- vk.Event, log *slog.Logger) *Server {
	return &Server{
		confirmation: cfg.VK.Confirmation,
		secret:       cfg.VK.Secret,
		events:       events,
		log:          log,
	}
}

// Router builds the chi router for the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/callback", s.handleCallback)

	return r
}

type callbackPayload struct {
	Type   string `json:"type"`
	Secret string `json:"secret"`
	Object struct {
		Message struct {
			FromID int64  `json:"from_id"`
			PeerID int64  `json:"peer_id"`
			Text   string `json:"text"`
		} `json:"message"`
	} `json:"object"`
}

// handleCallback answers the VK Callback API contract: echo the
// confirmation code on "confirmation", enqueue message events and
// always answer "ok" so VK stops redelivering.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var payload callbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if s.secret != "" && payload.Secret != s.secret {
		s.log.Warn("callback with wrong secret")
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	switch payload.Type {
	case "confirmation":
		_, _ = w.Write([]byte(s.confirmation))
		return
	case "message_new":
		msg := payload.Object.Message
		ev := vk.Event{
			IsNewMessage: true,
			ToMe:         msg.PeerID == msg.FromID,
			UserID:       msg.FromID,
			Text:         msg.Text,
		}
		select {
		case s.events <- ev:
		default:
			// never block the webhook handler; VK redelivers on its own
			s.log.Warn("event queue full, dropping callback", "user_id", ev.UserID)
		}
	}

	_, _ = w.Write([]byte("ok"))
}
