package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/patient-api/internal/middleware"
	apperrors "github.com/jwalitptl/patient-api/pkg/errors"
	"github.com/jwalitptl/patient-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type HealthHandler interface {
	RegisterRoutes(gin.IRoutes)
}

type Router struct {
	engine         *gin.Engine
	config         RouterConfig
	healthHandler  HealthHandler
	patientHandler Handler
	metrics        *metrics.Metrics
	gatherer       prometheus.Gatherer
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        float64
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	SecurityConfig   middleware.SecurityConfig
	MaxBodyBytes     int64
	RequestTimeout   time.Duration
}

func NewRouter(
	healthHandler HealthHandler,
	patientHandler Handler,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	logger zerolog.Logger,
	config RouterConfig,
) *Router {
	engine := gin.New() // Use New() instead of Default() for more control

	r := &Router{
		engine:         engine,
		config:         config,
		healthHandler:  healthHandler,
		patientHandler: patientHandler,
		metrics:        m,
		gatherer:       gatherer,
	}

	// Add core middlewares. Request id comes first so every log line carries it.
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(),
		middleware.ErrorHandler(),
		r.metricsMiddleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	// Add CORS with config
	engine.Use(
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(config.SecurityConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RPS:   config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.healthHandler.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	api := r.engine.Group("/api")
	sizeLimit := middleware.DefaultSizeLimitConfig()
	if r.config.MaxBodyBytes > 0 {
		sizeLimit.MaxBodySize = r.config.MaxBodyBytes
	}
	api.Use(middleware.SizeLimit(sizeLimit))

	r.patientHandler.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		r.metrics.RequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		r.metrics.RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		if c.Writer.Status() >= http.StatusBadRequest {
			errType := "http"
			if last := c.Errors.Last(); last != nil {
				errType = apperrors.CodeOf(last.Err).String()
			}
			r.metrics.ErrorTotal.WithLabelValues(c.Request.Method, path, errType).Inc()
		}
	}
}
