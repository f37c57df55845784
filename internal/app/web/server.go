package web

import (
	"ChatImageStudio/internal/app/dispatcher"
	"ChatImageStudio/internal/config"
	"ChatImageStudio/internal/metrics"
	"ChatImageStudio/internal/service/session"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templatesFS embed.FS

const sessionCookie = "studio_session"

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
	// dataURL помечает собственные data URL как безопасные для атрибута src
	"dataURL": func(s string) template.URL { return template.URL(s) },
}).ParseFS(templatesFS, "templates/page.html"))

// Server — веб-интерфейс с вкладками чата и генерации изображений.
type Server struct {
	cfg        *config.Config
	dispatcher *dispatcher.Dispatcher
	sessions   *session.Store
	metrics    *metrics.Metrics
	logger     *zap.SugaredLogger
	configErr  error

	router   chi.Router
	srv      *http.Server
	upgrader websocket.Upgrader
	running  atomic.Bool
}

// New создаёт рабочий сервер.
func New(cfg *config.Config, d *dispatcher.Dispatcher, sessions *session.Store, m *metrics.Metrics, logger *zap.SugaredLogger) *Server {
	s := &Server{cfg: cfg, dispatcher: d, sessions: sessions, metrics: m, logger: logger}
	s.init()
	return s
}

// NewMisconfigured создаёт сервер, который на любой запрос показывает одну фатальную ошибку конфигурации.
func NewMisconfigured(cfg *config.Config, cfgErr error, m *metrics.Metrics, logger *zap.SugaredLogger) *Server {
	s := &Server{cfg: cfg, metrics: m, logger: logger, configErr: cfgErr}
	s.init()
	return s
}

func (s *Server) init() {
	if s.cfg.BindAddr == "" {
		s.cfg.BindAddr = "127.0.0.1:8501"
	}
	s.upgrader = websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
	)
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	if s.configErr != nil {
		r.Handle("/", http.HandlerFunc(s.handleConfigError))
		r.Handle("/*", http.HandlerFunc(s.handleConfigError))
	} else {
		r.Get("/", s.handleChatPage)
		r.Get("/chat", s.handleChatPage)
		r.Post("/chat", s.handleChatSubmit)
		r.Post("/chat/reset", s.handleChatReset)
		r.Get("/image", s.handleImagePage)
		r.Post("/image", s.handleImageSubmit)
		r.Get("/image/download/{n}", s.handleImageDownload)
		r.Get("/ws/chat", s.handleChatWS)
	}
	s.router = r

	s.srv = &http.Server{
		Addr:              s.cfg.BindAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string { return s.cfg.BindAddr }

// Start запускает слушатель в фоне; остановка — по отмене контекста или Stop.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		s.logger.Infow("Web UI listening", "addr", "http://"+s.srv.Addr+"/")
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			s.logger.Errorw("Web UI stopped with error", "error", err)
		} else {
			s.logger.Infow("Web UI stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("web ui shutdown timeout"))
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("graceful shutdown error", "error", err)
		return s.srv.Close()
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if s.configErr != nil {
		http.Error(w, "misconfigured", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleConfigError(w http.ResponseWriter, _ *http.Request) {
	s.render(w, http.StatusServiceUnavailable, pageData{ConfigError: s.configErrorText()})
}

// configErrorText — единственное сообщение, которое видит пользователь при ошибке конфигурации.
func (s *Server) configErrorText() string {
	if errors.Is(s.configErr, config.ErrMissingAPIKey) {
		return "❌ API key missing. Set " + s.cfg.APIKeyEnv() + " environment variable."
	}
	return "❌ Configuration error: " + s.configErr.Error()
}

// session возвращает сессию из cookie или создаёт новую и выставляет cookie.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	id := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}
	sess, created := s.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, sessionCookieFor(sess.ID))
	}
	return sess
}

func sessionCookieFor(id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Errorw("Template render failed", "error", err)
	}
}
