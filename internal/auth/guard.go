package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/workpulse/survey/config"
	"github.com/workpulse/survey/pkg/response"
	"github.com/workpulse/survey/pkg/utils"
)

var (
	// ErrNotConfigured means the operator has not set an admin credential. Access is denied.
	ErrNotConfigured = errors.New("admin credentials not configured")
	// ErrInvalidCredentials means the supplied username or password did not match.
	ErrInvalidCredentials = errors.New("invalid admin credentials")
	// ErrTooManyAttempts means the client exceeded the failed-attempt limit.
	ErrTooManyAttempts = errors.New("too many failed attempts")
)

// Challenge is the WWW-Authenticate value sent with every rejection.
const Challenge = `Basic realm="admin", charset="UTF-8"`

// ContextAdminUser is the gin context key holding the authenticated admin username.
const ContextAdminUser = "admin_user"

// Guard checks HTTP Basic credentials against the configured admin credential.
// It holds no per-request state.
type Guard struct {
	username     string
	password     string
	passwordHash string
	limiter      Limiter
	logger       *zap.Logger
}

// NewGuard creates a guard. limiter may be nil to disable failed-attempt limiting.
func NewGuard(cfg config.AdminConfig, limiter Limiter, logger *zap.Logger) *Guard {
	if cfg.PasswordHash != "" && !utils.IsHash(cfg.PasswordHash) {
		logger.Warn("ADMIN_PASSWORD_HASH is not a bcrypt hash, every admin login will fail")
	}
	return &Guard{
		username:     cfg.Username,
		password:     cfg.Password,
		passwordHash: cfg.PasswordHash,
		limiter:      limiter,
		logger:       logger,
	}
}

// Configured reports whether a complete admin credential is present.
func (g *Guard) Configured() bool {
	return g.username != "" && (g.password != "" || g.passwordHash != "")
}

// Authenticate returns nil iff user and pass match the configured credential.
// Both halves are always compared in constant time.
func (g *Guard) Authenticate(user, pass string) error {
	if !g.Configured() {
		return ErrNotConfigured
	}
	userOK := equal(user, g.username)
	var passOK int
	if g.passwordHash != "" {
		if utils.CheckPassword(pass, g.passwordHash) {
			passOK = 1
		}
	} else {
		passOK = equal(pass, g.password)
	}
	if userOK&passOK != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// Check reports whether the supplied credential is accepted.
func (g *Guard) Check(user, pass string) bool {
	return g.Authenticate(user, pass) == nil
}

// equal compares fixed-length digests so neither content nor length leaks through timing.
func equal(supplied, configured string) int {
	a := sha256.Sum256([]byte(supplied))
	b := sha256.Sum256([]byte(configured))
	return subtle.ConstantTimeCompare(a[:], b[:])
}

// Middleware rejects requests without valid Basic credentials before the next handler runs.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := c.ClientIP()

		if g.limiter != nil {
			blocked, retryAfter, err := g.limiter.Blocked(ctx, key)
			if err != nil {
				g.logger.Warn("admin limiter unavailable", zap.Error(err))
			} else if blocked {
				g.logger.Warn("admin access throttled", zap.String("client_ip", key))
				c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				response.TooManyRequests(c, ErrTooManyAttempts.Error())
				c.Abort()
				return
			}
		}

		user, pass, ok := c.Request.BasicAuth()
		err := g.Authenticate(user, pass)
		if !ok && err == nil {
			err = ErrInvalidCredentials
		}
		if err != nil {
			g.reject(c, ctx, key, ok, err)
			return
		}

		if g.limiter != nil {
			if err := g.limiter.Reset(ctx, key); err != nil {
				g.logger.Warn("reset admin limiter", zap.Error(err))
			}
		}
		c.Set(ContextAdminUser, user)
		c.Next()
	}
}

func (g *Guard) reject(c *gin.Context, ctx context.Context, key string, supplied bool, err error) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		g.logger.Warn("admin access denied: ADMIN_USER and ADMIN_PASS (or ADMIN_PASSWORD_HASH) are not set")
	case supplied:
		g.logger.Info("admin authentication failed", zap.String("client_ip", key))
		if g.limiter != nil {
			if lerr := g.limiter.RecordFailure(ctx, key); lerr != nil {
				g.logger.Warn("record admin failure", zap.Error(lerr))
			}
		}
	}
	c.Header("WWW-Authenticate", Challenge)
	response.Unauthorized(c, http.StatusText(http.StatusUnauthorized))
	c.Abort()
}
