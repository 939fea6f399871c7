package handlers

import (
	"time"

	"praxis-website/internal/auth"
	"praxis-website/internal/cache"
	"praxis-website/internal/locale"
	"praxis-website/internal/metrics"
	"praxis-website/internal/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps is everything the router wires together
type RouterDeps struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	Resolver       *locale.Resolver
	Translator     Translator
	Cache          *cache.Manager
	Contact        *ContactHandler
	Pages          *PageHandler
	Admin          *AdminHandler
	Tokens         *auth.Tokens
	Limiter        *ratelimit.RateLimiter
	Database       Pinger
	Redis          Pinger
}

// NewRouter builds the gin engine with every public and admin route
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(deps.Logger))
	r.Use(metrics.Middleware())

	// CORS configuration
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept-Language", "Authorization"},
			ExposeHeaders:    []string{"Content-Language", "X-Cache", RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(deps.Resolver.Middleware())

	cached := func(route string) []gin.HandlerFunc {
		if deps.Cache == nil {
			return nil
		}
		return []gin.HandlerFunc{deps.Cache.Middleware(route)}
	}
	get := func(path, route string, h gin.HandlerFunc) {
		r.GET(path, append(cached(route), h)...)
	}

	// Operational routes
	r.GET("/health", healthCheck(deps.Database, deps.Redis))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Pages
	for _, page := range Pages {
		get(page.Path, page.Route, deps.Pages.Handler(page))
	}
	get("/sitemap.xml", RouteSitemap, deps.Pages.Sitemap)
	r.NoRoute(deps.Pages.NotFound)

	// Contact form
	r.POST("/kontakt",
		rateLimitMiddleware(deps.Limiter, deps.Translator, deps.Resolver.Default()),
		deps.Contact.Submit)
	get("/api/contact-reasons", RouteContactReasons, deps.Contact.GetReasons)

	// Admin routes
	if deps.Admin != nil && deps.Tokens != nil {
		admin := r.Group("/api/admin", deps.Tokens.Middleware())
		{
			admin.GET("/submissions", deps.Admin.GetSubmissions)
			admin.GET("/submissions/search", deps.Admin.SearchSubmissions)
			admin.GET("/stats", deps.Admin.GetStats)
			admin.GET("/notifications/stats", deps.Admin.GetNotificationStats)

			// Cache management
			admin.POST("/cache/warm", deps.Admin.TriggerWarm)
			admin.POST("/cache/invalidate", deps.Admin.InvalidateCache)
			admin.DELETE("/cache", deps.Admin.ClearCache)

			// Contact reasons
			admin.PATCH("/contact-reasons/:id", deps.Admin.SetReasonActive)
			admin.DELETE("/contact-reasons/:id", deps.Admin.DeleteReason)

			// Maintenance
			admin.POST("/cleanup/run", deps.Admin.RunCleanup)
			admin.GET("/ratelimit/stats", deps.Admin.GetRateLimitStats)
		}
	}

	return r
}
