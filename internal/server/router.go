package server

import (
	"net/http"
	"time"

	"roomchat/backend/internal/auth"
	"roomchat/backend/internal/clock"
	"roomchat/backend/internal/config"
	"roomchat/backend/internal/handler"
	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/mw"
	"roomchat/backend/internal/service"
	"roomchat/backend/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	_ "roomchat/backend/docs"
)

const defaultLimiterTTL = 2 * time.Minute

// Server bundles the HTTP engine with the background workers it owns.
type Server struct {
	Engine  *gin.Engine
	Limiter *mw.RL
}

// New wires the services, handlers and middleware on top of db.
func New(cfg *config.Config, db *gorm.DB, clk clock.Clock, hasher auth.Hasher) *Server {
	tokens := jwt.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, clk.Now)
	guard := service.NewGuard(db, clk, cfg.MaxLoginAttempts, cfg.LoginBlockWindow())
	users := service.NewUserService(db, hasher, tokens, guard, clk)
	rooms := service.NewRoomService(db, hasher, clk, service.Limits{
		MaxUsersPerRoom: cfg.MaxUsersPerRoom,
		MaxRoomsPerUser: cfg.MaxRoomsPerUser,
	})
	messages := service.NewMessageService(db, clk)

	limiter := mw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, defaultLimiterTTL)
	lookup := func(c *gin.Context, userID string) (bool, error) {
		return users.Exists(c.Request.Context(), userID)
	}

	engine := SetupRouter(cfg, handler.New(users, rooms, messages), auth.AuthMiddleware(tokens, lookup), limiter)
	return &Server{Engine: engine, Limiter: limiter}
}

// SetupRouter registers the middleware chain and every route.
func SetupRouter(cfg *config.Config, h *handler.Handler, requireAuth gin.HandlerFunc, limiter *mw.RL) *gin.Engine {
	r := gin.New()
	// ClientIP keys both the rate limiter and the login throttle, so forwarded
	// headers only count when they come from a configured proxy.
	if err := r.SetTrustedProxies(cfg.TrustedProxies()); err != nil {
		log.Error().Err(err).Msg("Invalid TRUSTED_PROXIES, ignoring forwarded headers")
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery())
	r.Use(mw.RequestLogger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.AllowedOrigins()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": "Chat server is running"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.Use(mw.RateLimit(limiter))
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", h.Register)
			authRoutes.POST("/login", h.Login)
			authRoutes.GET("/profile", requireAuth, h.GetProfile)
			authRoutes.PUT("/profile", requireAuth, h.UpdateProfile)
			authRoutes.POST("/logout", requireAuth, h.Logout)
		}

		roomRoutes := api.Group("/rooms")
		roomRoutes.Use(requireAuth)
		{
			roomRoutes.GET("", h.ListRooms)
			roomRoutes.POST("", h.CreateRoom)
			roomRoutes.GET("/:id", h.GetRoom)
			roomRoutes.POST("/:id/join", h.JoinRoom)
			roomRoutes.POST("/:id/enter", h.EnterRoom)
			roomRoutes.POST("/:id/leave", h.LeaveRoom)
			roomRoutes.GET("/:id/membership", h.CheckMembership)
			roomRoutes.GET("/:id/messages", h.ListMessages)
			roomRoutes.POST("/:id/messages", h.SendMessage)
		}

		messageRoutes := api.Group("/messages")
		messageRoutes.Use(requireAuth)
		{
			messageRoutes.PUT("/:id", h.EditMessage)
			messageRoutes.DELETE("/:id", h.DeleteMessage)
			messageRoutes.POST("/:id/reactions", h.AddReaction)
			messageRoutes.DELETE("/:id/reactions", h.RemoveReaction)
		}
	}

	return r
}
