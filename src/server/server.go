package server

import (
	"context"
	"fmt"
	"io"
	"line_chatbot/src/dispatch"
	"line_chatbot/src/line"
	"line_chatbot/src/logger"
	"line_chatbot/src/model"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	signatureHeader = "X-Line-Signature"
	stateCookie     = "booking_oauth_state"
	maxWebhookBody  = 1 << 20
)

type Dispatcher interface {
	Dispatch(ctx context.Context, events []model.Event) dispatch.Result
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Authorizer runs the Google OAuth2 consent flow for the booking calendar
type Authorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

type Options struct {
	ChannelSecret string
	Dispatcher    Dispatcher
	OAuth         Authorizer
	Checks        map[string]Pinger
}

// Server exposes the webhook and the operational endpoints
type Server struct {
	opts   Options
	router *mux.Router
}

func New(opts Options) *Server {
	s := &Server{opts: opts}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := mux.NewRouter()

	r.HandleFunc("/webhook", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if s.opts.OAuth != nil {
		r.HandleFunc("/booking/auth", s.handleAuth).Methods(http.MethodGet)
		r.HandleFunc("/booking/oauth2callback", s.handleOAuthCallback).Methods(http.MethodGet)
	}

	s.router = r
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithFields(r.Context(), map[string]any{"request_id": uuid.NewString()})
	log := logger.Ctx(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read webhook body")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	if s.opts.ChannelSecret != "" && !line.ValidSignature(s.opts.ChannelSecret, r.Header.Get(signatureHeader), body) {
		log.Warn().Msg("Rejected webhook with invalid signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var req model.WebhookRequest
	if err := sonic.Unmarshal(body, &req); err != nil || req.Events == nil {
		log.Warn().Err(err).Msg("Invalid payload: 'events' is not an array")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	res := s.opts.Dispatcher.Dispatch(ctx, *req.Events)
	if res.Err != nil {
		log.Error().Err(res.Err).Int("failed", res.Failed).Msg("Webhook batch had failing events")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.opts.Checks))
	for name, p := range s.opts.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	out, err := sonic.Marshal(map[string]any{"status": http.StatusText(status), "checks": checks})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(out)
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/booking",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.opts.OAuth.AuthURL(state), http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing code", http.StatusBadRequest)
		return
	}
	if c, err := r.Cookie(stateCookie); err != nil || c.Value != q.Get("state") {
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	token, err := s.opts.OAuth.Exchange(r.Context(), code)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("Error getting token")
		http.Error(w, "Error getting token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "Refresh Token:\n%s\n\nSet GOOGLE_REFRESH_TOKEN to this value.\n", token)
}
