// Package httpapi serves the bot's operational HTTP surface: liveness,
// Prometheus metrics, and read-only usage reporting. It carries no bot
// functionality; the chat transport is the only way to request documents.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Carelightt/pdftelegram/internal/config"
	"github.com/Carelightt/pdftelegram/internal/services"
)

// RegisterRoutes attaches middleware and the ops endpoints to r.
//
// Middleware order: tracing first so everything is spanned, then request
// correlation, logging, recovery, metrics, and finally response shaping
// (gzip, CORS).
func RegisterRoutes(r *gin.Engine, usage *services.UsageService, cfg config.Config) {
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(RequestID())
	r.Use(Logger())
	r.Use(Recovery())
	r.Use(Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{requestIDHeader, "Content-Length"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := &usageHandler{usage: usage}
	r.GET("/usage/today", h.today)
	r.GET("/usage/today/:chat_id", h.todayForChat)
}

type usageHandler struct {
	usage *services.UsageService
}

// today returns the full per-chat production report for the current ledger
// day.
func (h *usageHandler) today(c *gin.Context) {
	lines, err := h.usage.TodaySummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "summary unavailable"})
		return
	}
	total := 0
	chats := make([]gin.H, 0, len(lines))
	for _, l := range lines {
		chats = append(chats, gin.H{
			"chat_id": l.ChatID,
			"name":    l.Name,
			"counts":  l.Counts,
			"total":   l.Total,
		})
		total += l.Total
	}
	c.JSON(http.StatusOK, gin.H{
		"day":   h.usage.Today(),
		"chats": chats,
		"total": total,
	})
}

// todayForChat returns one chat's counts for the current ledger day.
func (h *usageHandler) todayForChat(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid chat id"})
		return
	}
	counts, err := h.usage.TodayForChat(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "usage unavailable"})
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{
		"day":     h.usage.Today(),
		"chat_id": chatID,
		"counts":  counts,
		"total":   total,
	})
}
