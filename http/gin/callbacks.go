// Package gin receives checkout widget results and out-of-band settlement
// notices over HTTP and routes them to the pending payment.
//
// Example usage:
//
//	hub := payment.NewHub(logger)
//	r := gin.New()
//	lnvpsgin.Register(r, lnvpsgin.Config{Sink: hub, Secret: os.Getenv("LNVPS_CALLBACK_SECRET")})
//	r.Run(":8080")
package gin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lnvps/lnvps-go/signers/nostr"
)

// SecretHeader carries the shared callback secret.
const SecretHeader = "X-LNVPS-Secret"

// DefaultAuthWindow bounds the age of a signed callback.
const DefaultAuthWindow = 60 * time.Second

// Sink accepts external payment reports. payment.Hub implements it.
type Sink interface {
	Settle(paymentID string) bool

	// Checkout reports whether paymentID is a pending card checkout.
	Checkout(paymentID string, success bool) bool
}

// Config configures the callback routes.
type Config struct {
	// Sink receives callbacks. Without a Sink only health and metrics are served.
	Sink Sink

	// Secret, when set, must be presented in SecretHeader on callback routes.
	Secret string

	// TrustedKeys, when set, requires callbacks to carry an Authorization
	// header signed for the exact URL and method by one of these hex public keys.
	TrustedKeys []string

	// PublicURL is the externally visible base URL signed callbacks are
	// addressed to. Defaults to the scheme and host of the request.
	PublicURL string

	// AuthWindow bounds the age of a signed callback. Defaults to DefaultAuthWindow.
	AuthWindow time.Duration

	// DisableMetrics omits the /metrics route.
	DisableMetrics bool

	Logger *slog.Logger
}

type checkoutBody struct {
	Result string `json:"result" binding:"required,oneof=success cancel"`
}

type settlementBody struct {
	PaymentID string `json:"payment_id" binding:"required"`
	IsPaid    bool   `json:"is_paid"`
}

// Register adds the callback, health and metrics routes to r.
func Register(r gin.IRoutes, config Config) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{sink: config.Sink, logger: logger}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if !config.DisableMetrics {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	if config.Sink == nil {
		return
	}
	auth := []gin.HandlerFunc{requireSecret(config.Secret)}
	if len(config.TrustedKeys) > 0 {
		auth = append(auth, requireSignature(config, logger))
	}
	r.POST("/callbacks/checkout/:payment_id", append(auth, h.checkout)...)
	r.POST("/callbacks/settlement", append(auth, h.settlement)...)
}

// New returns an engine with recovery and the callback routes.
func New(config Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	Register(r, config)
	return r
}

func requireSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid callback secret"})
			return
		}
		c.Next()
	}
}

func requireSignature(config Config, logger *slog.Logger) gin.HandlerFunc {
	trusted := make(map[string]bool, len(config.TrustedKeys))
	for _, k := range config.TrustedKeys {
		trusted[strings.ToLower(k)] = true
	}
	window := config.AuthWindow
	if window <= 0 {
		window = DefaultAuthWindow
	}
	base := strings.TrimRight(config.PublicURL, "/")

	return func(c *gin.Context) {
		url := requestURL(c.Request, base)
		event, err := nostr.VerifyAuthHeader(c.GetHeader("Authorization"), url, c.Request.Method, time.Now(), window)
		if err != nil {
			logger.Warn("rejecting unsigned callback", "url", url, "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid callback signature"})
			return
		}
		if !trusted[strings.ToLower(event.PubKey)] {
			logger.Warn("rejecting callback from untrusted key", "pubkey", event.PubKey)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "untrusted callback key"})
			return
		}
		c.Next()
	}
}

func requestURL(r *http.Request, base string) string {
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + r.URL.RequestURI()
}

type handlers struct {
	sink   Sink
	logger *slog.Logger
}

func (h *handlers) checkout(c *gin.Context) {
	paymentID := c.Param("payment_id")

	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Warn("invalid checkout callback", "payment_id", paymentID, "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "result must be success or cancel"})
		return
	}

	if !h.sink.Checkout(paymentID, body.Result == "success") {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no pending card checkout"})
		return
	}
	h.logger.Info("checkout result received", "payment_id", paymentID, "result", body.Result)
	c.JSON(http.StatusOK, gin.H{"payment_id": paymentID, "result": body.Result})
}

func (h *handlers) settlement(c *gin.Context) {
	var body settlementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Warn("invalid settlement callback", "error", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "payment_id is required"})
		return
	}

	if !body.IsPaid {
		c.JSON(http.StatusAccepted, gin.H{"payment_id": body.PaymentID, "settled": false})
		return
	}
	if !h.sink.Settle(body.PaymentID) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no pending payment"})
		return
	}
	h.logger.Info("settlement notice received", "payment_id", body.PaymentID)
	c.JSON(http.StatusOK, gin.H{"payment_id": body.PaymentID, "settled": true})
}
