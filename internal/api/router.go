package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/app"
	iauth "github.com/bodhgriha/marketplace/internal/auth"
	"github.com/bodhgriha/marketplace/internal/auth/mfa"
	"github.com/bodhgriha/marketplace/internal/cache"
	"github.com/bodhgriha/marketplace/internal/content"
	"github.com/bodhgriha/marketplace/internal/handlers"
	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/realtime"
	"github.com/bodhgriha/marketplace/internal/services"
)

// Deps bundles the constructed services the router wires into handlers.
type Deps struct {
	DB          *gorm.DB
	Config      *app.Config
	Credentials *iauth.CredentialService
	Sessions    *iauth.SessionService
	Login       *iauth.LoginService
	TOTP        *mfa.TOTPService
	Cache       cache.Store
	RateStore   middleware.RateStore
	Hub         *realtime.Hub
	Content     *content.Loader
}

// NewRouter builds the gin engine, wires middleware and registers all routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Sessions == nil || deps.Credentials == nil || deps.Login == nil || deps.TOTP == nil {
		return nil, fmt.Errorf("auth services must be provided")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache store must be provided")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Hub == nil {
		deps.Hub = realtime.NewHub()
	}

	audit, err := services.NewAuditService(deps.DB)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	blog, err := services.NewBlogService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	schools, err := services.NewSchoolService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	testimonials, err := services.NewTestimonialService(deps.DB, audit)
	if err != nil {
		return nil, err
	}
	chat, err := services.NewChatService(deps.DB, deps.Hub)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.AccessLog())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if deps.Config.Server.CSRF.Enabled {
		r.Use(middleware.CSRF())
	}

	limit := deps.Config.Server.RateLimit
	if limit.Requests > 0 {
		window := limit.Window
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(deps.RateStore, limit.Requests, window))
	}

	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health(deps.DB))
	if deps.Config.Metrics.Enabled {
		endpoint := deps.Config.Metrics.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(deps.Sessions)

	authHandler := handlers.NewAuthHandler(deps.Credentials, deps.Sessions, deps.Login, deps.TOTP, audit)
	twoFactorHandler := handlers.NewTwoFactorHandler(deps.TOTP, deps.Cache, deps.Config.Auth.TOTP.EnrollmentWindow, audit)
	userHandler := handlers.NewUserHandler(users)
	blogHandler := handlers.NewBlogHandler(blog)
	schoolHandler := handlers.NewSchoolHandler(schools)
	testimonialHandler := handlers.NewTestimonialHandler(testimonials)
	chatHandler := handlers.NewChatHandler(chat, deps.Hub)

	registerAuthRoutes(r, authHandler, twoFactorHandler, requireAuth)
	registerUserRoutes(r, userHandler, requireAuth)
	registerBlogRoutes(r, blogHandler, requireAuth)
	registerSchoolRoutes(r, schoolHandler, requireAuth)
	registerTestimonialRoutes(r, testimonialHandler, requireAuth)
	registerChatRoutes(r, chatHandler, requireAuth)
	registerAuditRoutes(r, handlers.NewAuditHandler(audit), requireAuth)

	if deps.Content != nil {
		registerContentRoutes(r, handlers.NewContentHandler(deps.Content))
	}

	return r, nil
}
