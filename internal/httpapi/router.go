// Package httpapi is the HTTP/JSON gateway. Every route decodes into the
// wire types of api/coova/v1 and calls the same service implementation the
// gRPC server exposes, so both transports share one behaviour.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "github.com/PaulBabatuyi/coova/api/coova/v1"
	"github.com/PaulBabatuyi/coova/internal/auth"
	"github.com/PaulBabatuyi/coova/internal/data"
	"github.com/PaulBabatuyi/coova/internal/middleware"
	"github.com/PaulBabatuyi/coova/internal/validation"
)

// PaymentSecretHeader carries the shared secret of the payment callback.
const PaymentSecretHeader = "X-Payment-Secret"

// Confirmer applies a settled payment to a booking.
type Confirmer interface {
	ConfirmPayment(ctx context.Context, bookingID, paymentRef string) (*data.Booking, error)
}

// Config wires the router. Limiter may be nil to disable rate limiting.
type Config struct {
	Service       v1.CoovaServiceServer
	Payments      Confirmer
	JWT           *auth.JWTManager
	Limiter       *middleware.LimiterStore
	PaymentSecret string
	Logger        *logrus.Logger
}

type handler struct {
	svc      v1.CoovaServiceServer
	payments Confirmer
	secret   string
	validate *validation.Validator
	log      *logrus.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg Config) *gin.Engine {
	h := &handler{
		svc:      cfg.Service,
		payments: cfg.Payments,
		secret:   cfg.PaymentSecret,
		validate: validation.New(),
		log:      cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(cfg.Logger))

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter)
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	pub := r.Group("/v1")
	pub.GET("/resources/:id/quote", h.quote)
	pub.GET("/resources/:id/availability", h.availability)
	pub.POST("/payments/confirm", h.confirmPayment)

	api := r.Group("/v1", middleware.JWTAuth(cfg.JWT))
	{
		api.POST("/bookings", limit, h.requestBooking)
		api.GET("/bookings", h.listBookings)
		api.GET("/bookings/:id", h.getBooking)
		api.POST("/bookings/:id/transition", h.transitionBooking)

		api.POST("/resources", h.createResource)
		api.GET("/resources", h.listResources)
		api.GET("/resources/:id", h.getResource)
		api.PATCH("/resources/:id", h.updateResource)

		api.POST("/conversations", h.openConversation)
		api.POST("/conversations/:id/messages", limit, h.sendMessage)
		api.GET("/conversations/:id/messages", h.listMessages)
		api.DELETE("/conversations/:id/messages/:messageId", h.deleteMessage)
		api.POST("/conversations/:id/read", h.markRead)
		api.GET("/conversations/:id/unreadCount", h.unreadCount)

		api.GET("/inbox", h.inbox)
	}
	return r
}
