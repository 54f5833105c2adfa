package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/oggyb/pulse/internal/auth"
	svcErr "github.com/oggyb/pulse/internal/errors"
	"github.com/oggyb/pulse/internal/service/admin"
	"github.com/oggyb/pulse/internal/service/identity"
)

const (
	HeaderInitData  = "X-Telegram-Init-Data"
	HeaderDevUser   = "X-User-Id"
	HeaderAdminKey  = "X-Admin-Key"
	HeaderRequestID = "X-Request-Id"

	ctxUserID    = "userID"
	ctxRequestID = "requestID"
)

// CORS wraps the whole engine so preflight requests never reach gin routing.
func CORS(allowedOrigins []string, allowCredentials bool) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", HeaderInitData, HeaderDevUser, HeaderAdminKey},
		ExposedHeaders:   []string{HeaderRequestID, "Retry-After"},
		AllowCredentials: allowCredentials,
		MaxAge:           300,
	})
}

// RequestLogger tags each request with an id and writes one slog record per request.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"request_id", id,
			"user_id", c.GetInt64(ctxUserID),
		)
	}
}

// Authenticator resolves the caller of an /api request.
//
// Accepted credentials, first match wins:
//   - Authorization: Bearer <session jwt>
//   - X-Telegram-Init-Data: raw Mini-App initData, verified and resolved
//   - X-User-Id: plain user id, only when the dev header is enabled
type Authenticator struct {
	sessions  *auth.JWT
	verifier  identity.Verifier
	resolver  *identity.Resolver
	devHeader bool
	log       *slog.Logger
}

func NewAuthenticator(sessions *auth.JWT, verifier identity.Verifier, resolver *identity.Resolver, devHeader bool, log *slog.Logger) *Authenticator {
	return &Authenticator{sessions: sessions, verifier: verifier, resolver: resolver, devHeader: devHeader, log: log}
}

func (a *Authenticator) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := a.identify(c)
		if err != nil {
			fail(c, a.log, err)
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func (a *Authenticator) identify(c *gin.Context) (int64, error) {
	if h := c.GetHeader("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return 0, svcErr.ErrToken
		}
		id, err := a.sessions.Verify(strings.TrimSpace(token))
		if err != nil {
			return 0, svcErr.ErrToken
		}
		return id, nil
	}

	if raw := c.GetHeader(HeaderInitData); raw != "" {
		p, err := a.verifier.Verify(raw)
		if err != nil {
			return 0, err
		}
		u, err := a.resolver.Resolve(c.Request.Context(), p)
		if err != nil {
			return 0, err
		}
		return u.ID, nil
	}

	if a.devHeader {
		if raw := c.GetHeader(HeaderDevUser); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return 0, svcErr.ErrToken
			}
			return id, nil
		}
	}
	return 0, svcErr.Unauthorized(svcErr.CodeInvalidToken, "authentication required")
}

// RequireAdmin checks X-Admin-Key against the admin service.
func RequireAdmin(svc *admin.Service, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Authenticate(c.GetHeader(HeaderAdminKey)); err != nil {
			fail(c, log, err)
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) int64 { return c.GetInt64(ctxUserID) }
