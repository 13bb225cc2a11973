package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/api/middleware"
	"github.com/example/catering-cart/internal/auth"
)

// RouterConfig holds the dependencies of the HTTP router
type RouterConfig struct {
	Drafts     *DraftOrderHandlers
	Auth       *AuthHandlers
	JWTService *auth.JWTService
	Logger     *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	requireAuth := middleware.AuthMiddleware(cfg.JWTService)
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Auth
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.Auth.Login(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			cfg.Auth.Logout(w, r)
		default:
			methodNotAllowed(w)
		}
	})

	// Access
	mux.Handle("/access", requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.Drafts.GetAccess(w, r)
		default:
			methodNotAllowed(w)
		}
	})))

	// Draft orders
	mux.Handle("/draft-orders", requireAuth(middleware.RequireCustomer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg.Drafts.GetDraft(w, r)
		case http.MethodPut:
			cfg.Drafts.PutDraft(w, r)
		default:
			methodNotAllowed(w)
		}
	}))))

	mux.Handle("/draft-orders/", requireAuth(middleware.RequireCustomer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			cfg.Drafts.DeleteDraft(w, r)
		default:
			methodNotAllowed(w)
		}
	}))))

	return withLogging(logger, mux)
}

func methodNotAllowed(w http.ResponseWriter) {
	respondJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}
