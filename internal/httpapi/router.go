// Package httpapi is the Mini-App REST API.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/pulse/internal/auth"
	"github.com/oggyb/pulse/internal/service/admin"
	"github.com/oggyb/pulse/internal/service/assistant"
	"github.com/oggyb/pulse/internal/service/billing"
	"github.com/oggyb/pulse/internal/service/dates"
	"github.com/oggyb/pulse/internal/service/identity"
	"github.com/oggyb/pulse/internal/service/love"
	"github.com/oggyb/pulse/internal/service/pairing"
	"github.com/oggyb/pulse/internal/service/wishes"
)

// Deps is everything the handlers call into.
type Deps struct {
	Sessions  *auth.JWT
	Verifier  identity.Verifier
	Resolver  *identity.Resolver
	Pairs     *pairing.Registry
	Love      *love.Service
	Wishes    *wishes.Service
	Dates     *dates.Service
	Billing   *billing.Service
	Assistant *assistant.Service
	Admin     *admin.Service
	Logger    *slog.Logger

	BotUsername      string
	DevHeader        bool
	AllowedOrigins   []string
	AllowCredentials bool
}

// Router owns the handlers and builds the gin engine.
type Router struct {
	d    Deps
	log  *slog.Logger
	auth *Authenticator
}

func NewRouter(d Deps) *Router {
	log := d.Logger.With("component", "http")
	return &Router{
		d:    d,
		log:  log,
		auth: NewAuthenticator(d.Sessions, d.Verifier, d.Resolver, d.DevHeader, log),
	}
}

// Handler is the engine wrapped in CORS, ready for http.Server.
func (r *Router) Handler() http.Handler {
	return CORS(r.d.AllowedOrigins, r.d.AllowCredentials)(r.Setup())
}

func (r *Router) Setup() *gin.Engine {
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(r.log))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", health)
	router.HEAD("/health", health)

	api := router.Group("/api")
	{
		api.POST("/auth/login", r.login)

		protected := api.Group("")
		protected.Use(r.auth.Require())
		{
			protected.GET("/auth/me", r.me)

			pair := protected.Group("/pair")
			{
				pair.POST("/invite", r.createInvite)
				pair.POST("/join", r.joinInvite)
				pair.POST("/unlink", r.unlink)
			}

			lv := protected.Group("/love")
			{
				lv.POST("", r.sendLove)
				lv.GET("/history", r.loveHistory)
				lv.GET("/stats", r.loveStats)
				lv.GET("/streak", r.loveStreak)
			}

			w := protected.Group("/wishes")
			{
				w.GET("/cards", r.wishCards)
				w.POST("/swipe", r.swipe)
				w.GET("/matches", r.matches)
				w.POST("/matches/:id/complete", r.completeMatch)
				w.GET("/stats", r.wishStats)
			}

			d := protected.Group("/dates")
			{
				d.GET("", r.listDates)
				d.POST("", r.createDate)
				d.GET("/upcoming", r.upcomingDates)
				d.PUT("/:id", r.updateDate)
				d.DELETE("/:id", r.deleteDate)
			}

			p := protected.Group("/payments")
			{
				p.GET("/tiers", r.tiers)
				p.POST("/invoice", r.createInvoice)
				p.GET("/status", r.paymentStatus)
			}

			protected.POST("/promo/apply", r.applyPromo)

			ai := protected.Group("/ai")
			{
				ai.GET("/history", r.aiHistory)
				ai.POST("/chat", r.aiChat)
			}
		}

		adm := api.Group("/admin")
		adm.Use(RequireAdmin(r.d.Admin, r.log))
		{
			adm.GET("/stats", r.adminStats)
			adm.GET("/users", r.adminUsers)
			adm.GET("/activity", r.adminActivity)
			adm.GET("/promo-codes", r.adminPromos)
			adm.POST("/promo-codes", r.adminCreatePromo)
		}
	}

	return router
}
