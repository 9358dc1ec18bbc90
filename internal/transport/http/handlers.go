// @title Pressdesk Admin Gate API
// @version 1.0.0
// @description Session, permission, and login rate-limit gate for the Pressdesk admin panel

// @contact.name API Support
// @contact.url https://pressdesk.io/support
// @contact.email support@pressdesk.io

// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/pressdesk/pressdesk/internal/audit"
	"github.com/pressdesk/pressdesk/internal/authz"
	"github.com/pressdesk/pressdesk/internal/identity"
	"github.com/pressdesk/pressdesk/internal/observability/logger"
	"github.com/pressdesk/pressdesk/internal/observability/metrics"
	"github.com/pressdesk/pressdesk/internal/provider"
	"github.com/pressdesk/pressdesk/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	reconciler  *session.Reconciler
	resolver    *authz.Resolver
	auditLogger audit.Logger
	gateMetrics *metrics.GateMetrics
	validate    *validator.Validate
}

// NewHandler creates a new HTTP handler. gateMetrics may be nil when
// metrics are disabled.
func NewHandler(
	reconciler *session.Reconciler,
	resolver *authz.Resolver,
	auditLogger audit.Logger,
	gateMetrics *metrics.GateMetrics,
) *Handler {
	return &Handler{
		reconciler:  reconciler,
		resolver:    resolver,
		auditLogger: auditLogger,
		gateMetrics: gateMetrics,
		validate:    validator.New(),
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)
		r.Get("/auth/me", h.GetCurrentAdmin)

		r.Route("/authz", func(r chi.Router) {
			r.Get("/can/{capability}", h.CheckCapability)
			r.Get("/access", h.CheckAccess)
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "pressdesk-gate",
	})
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"editor@newsroom.example"`
	Password string `json:"password" validate:"required" example:"secret123"`
}

// Login handles admin login
// @Summary Login
// @Description Authenticate an admin and establish the gate session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 429 {object} map[string]any
// @Failure 502 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	admin, err := h.reconciler.Login(r.Context(), req.Email, req.Password)
	if h.gateMetrics != nil {
		h.gateMetrics.LoginDuration.Record(r.Context(), time.Since(start).Seconds())
	}
	if err != nil {
		var locked *session.LockedOutError
		switch {
		case errors.As(err, &locked):
			if h.gateMetrics != nil {
				h.gateMetrics.LoginLocked.Add(r.Context(), 1)
			}
			respondJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":               "account temporarily locked",
				"retry_after_seconds": locked.RemainingSeconds,
			})
		case errors.Is(err, session.ErrCredentialsRejected):
			if h.gateMetrics != nil {
				h.gateMetrics.LoginFailure.Add(r.Context(), 1)
			}
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, session.ErrNoProfile):
			if h.gateMetrics != nil {
				h.gateMetrics.LoginFailure.Add(r.Context(), 1)
			}
			respondError(w, http.StatusUnauthorized, "no admin profile for this account")
		case errors.Is(err, provider.ErrProviderUnavailable):
			respondError(w, http.StatusBadGateway, "identity provider unavailable")
		default:
			slog.ErrorContext(r.Context(), "login failed",
				logger.Error(err),
				logger.Email(req.Email),
			)
			respondError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	if h.gateMetrics != nil {
		h.gateMetrics.LoginSuccess.Add(r.Context(), 1)
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"admin": adminPayload(admin),
		"state": h.reconciler.State().String(),
	})
}

// Logout handles admin logout
// @Summary Logout
// @Description Sign out and clear the gate session. Always succeeds.
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.reconciler.Logout(r.Context())

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// GetCurrentAdmin returns the current authenticated admin identity
// @Summary Get Current Admin
// @Description Retrieve the identity and session state of the signed-in admin
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) GetCurrentAdmin(w http.ResponseWriter, r *http.Request) {
	admin := h.reconciler.Current()
	if admin == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"admin": adminPayload(admin),
		"state": h.reconciler.State().String(),
	})
}

// CheckCapability reports whether the signed-in admin holds a capability
// @Summary Check Capability
// @Description Resolve a single capability against the current admin's role
// @Tags Authz
// @Produce json
// @Param capability path string true "Capability name"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /authz/can/{capability} [get]
func (h *Handler) CheckCapability(w http.ResponseWriter, r *http.Request) {
	cap := authz.Capability(chi.URLParam(r, "capability"))
	if !knownCapability(cap) {
		respondError(w, http.StatusBadRequest, "unknown capability")
		return
	}

	allowed := h.resolver.Can(cap)
	if !allowed {
		h.recordDenied(r, map[string]any{audit.AttrReason: "capability", "capability": string(cap)})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"capability": string(cap),
		"allowed":    allowed,
	})
}

// CheckAccess reports whether the signed-in admin may open an admin path
// @Summary Check Path Access
// @Description Resolve an admin panel path against the path permission map
// @Tags Authz
// @Produce json
// @Param path query string true "Admin panel path"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Router /authz/access [get]
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	allowed := h.resolver.CanAccess(path)
	if !allowed {
		h.recordDenied(r, map[string]any{audit.AttrReason: "path", audit.AttrPath: path})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"path":    path,
		"allowed": allowed,
	})
}

func (h *Handler) recordDenied(r *http.Request, metadata map[string]any) {
	actorID := ""
	if admin := h.reconciler.Current(); admin != nil {
		actorID = admin.ID
	}
	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAccessDenied,
		ActorID:   actorID,
		Resource:  "authz",
		IPAddress: getIPAddress(r),
		UserAgent: r.UserAgent(),
		Metadata:  metadata,
	})
	if h.gateMetrics != nil {
		h.gateMetrics.AccessDenied.Add(r.Context(), 1)
	}
}

func knownCapability(cap authz.Capability) bool {
	for _, c := range authz.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

func adminPayload(admin *identity.Admin) map[string]any {
	return map[string]any{
		"id":        admin.ID,
		"email":     admin.Email,
		"name":      admin.Name,
		"role":      string(admin.Role),
		"is_active": admin.Active,
		"avatar":    admin.AvatarURL,
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
