package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/metrics"
	"github.com/fradiavoloinvoice/fradiavolo-backend/internal/models"
)

const operatorContextKey = "operator"

// Operators resolves API tokens to operator accounts.
type Operators interface {
	OperatorByToken(token string) (models.Operator, bool)
}

// Auth resolves the caller from the X-Api-Token header (or a Bearer token)
// against the operator directory and stores the account in the request
// context.
func Auth(operators Operators) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Api-Token")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}

		operator, ok := operators.OperatorByToken(token)
		if !ok {
			c.AbortWithStatusJSON(ErrUnauthorized.StatusCode, ErrorResponse{
				Message: ErrUnauthorized.Message,
				Code:    ErrUnauthorized.Code,
			})
			return
		}

		c.Set(operatorContextKey, operator)
		c.Next()
	}
}

// RequireAdmin guards admin-only routes.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentOperator(c).Role != models.RoleAdmin {
			c.AbortWithStatusJSON(ErrForbidden.StatusCode, ErrorResponse{
				Message: ErrForbidden.Message,
				Code:    ErrForbidden.Code,
			})
			return
		}
		c.Next()
	}
}

// CurrentOperator returns the authenticated caller. Only valid after Auth.
func CurrentOperator(c *gin.Context) models.Operator {
	operator, _ := c.MustGet(operatorContextKey).(models.Operator)
	return operator
}

// RequestLogger logs every request with its latency and status.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 {
			event = log.Warn()
		}
		event.
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", path).
			Msg("Request processed")
	}
}

// MetricsMiddleware records request counts and latency per method.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		m.IncrementCounter("http_requests_total")
		if c.Writer.Status() >= 400 {
			m.IncrementCounter("http_requests_errors")
		}
		m.RecordTimer("http_request_"+strings.ToLower(c.Request.Method), time.Since(start))
	}
}
