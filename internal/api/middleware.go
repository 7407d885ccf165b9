package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/internal/marketdata"
	"github.com/jeovahfialho/portfolio-analyzer/internal/valuation"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

var (
	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "http_duration_seconds",
		Help: "Duration of HTTP requests.",
	}, []string{"method", "route", "status_code"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status_code"})
)

func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := c.Response().StatusCode()
		// ErrorHandler sits before this middleware, so the response is not written yet.
		if err != nil {
			status, _ = statusFor(err)
		}

		httpDuration.WithLabelValues(
			c.Method(),
			c.Route().Path,
			fmt.Sprintf("%d", status),
		).Observe(duration)

		httpRequests.WithLabelValues(
			c.Method(),
			c.Route().Path,
			fmt.Sprintf("%d", status),
		).Inc()

		return err
	}
}

func RateLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return errorResponse(c, fiber.StatusTooManyRequests, "muitas requisições")
		},
	})
}

// ErrorHandler turns errors returned by handlers into ErrorResponse bodies.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		code, message := statusFor(err)
		if code >= fiber.StatusInternalServerError {
			logger.WithContext(c.UserContext()).Error("erro na requisição",
				zap.String("path", c.Path()),
				zap.Int("status", code),
				zap.Error(err))
		}

		return errorResponse(c, code, message)
	}
}

func statusFor(err error) (int, string) {
	var fe *fiber.Error
	var upstream *marketdata.UpstreamError

	switch {
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	case errors.Is(err, valuation.ErrDomain):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, marketdata.ErrUnknownStatement):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, marketdata.ErrNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.As(err, &upstream):
		return fiber.StatusBadGateway, "provedor de dados indisponível"
	default:
		return fiber.StatusInternalServerError, "erro interno"
	}
}

func errorResponse(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

// RequestID propagates X-Request-ID, generating one when absent, and stores it in
// the user context so services log it.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("X-Request-ID", requestID)
		c.Locals("requestID", requestID)
		c.SetUserContext(context.WithValue(c.UserContext(), logger.RequestIDKey, requestID))

		return c.Next()
	}
}

func BasicAuth(user, password string) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Users: map[string]string{user: password},
		Unauthorized: func(c *fiber.Ctx) error {
			return errorResponse(c, fiber.StatusUnauthorized, "não autorizado")
		},
	})
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}
