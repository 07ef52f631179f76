package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weberkan/raywatch/internal/history"
	"github.com/weberkan/raywatch/internal/model"
	"github.com/weberkan/raywatch/internal/session"
)

// watchRequest is the POST /watch body. wagon_type and passengers are
// optional with the documented defaults.
type watchRequest struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Date       string  `json:"date"`
	WagonType  string  `json:"wagon_type"`
	Passengers int     `json:"passengers"`
	Interval   float64 `json:"interval_minutes"`
}

// registerRoutes sets up the control routes. The /api prefix matches the
// mobile client; the bare paths are kept as aliases.
func registerRoutes(router *gin.Engine, controller *session.Controller, recorder *history.Recorder) {
	for _, group := range []*gin.RouterGroup{router.Group("/api"), router.Group("/")} {
		group.POST("/watch", handleStartWatch(controller))
		group.DELETE("/watch", handleStopWatch(controller))
		group.GET("/status", handleStatus(controller))
		group.GET("/health", handleHealth())
		group.GET("/history", handleHistory(recorder))
	}
}

func handleStartWatch(controller *session.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req watchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "malformed request body"})
			return
		}

		wagon, err := model.ParseWagonType(req.WagonType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
			return
		}
		params := model.WatchParams{
			From:            req.From,
			To:              req.To,
			Date:            req.Date,
			Wagon:           wagon,
			Passengers:      req.Passengers,
			IntervalMinutes: req.Interval,
		}

		if err := controller.Start(params); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, session.ErrInvalidRequest) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"status": "error", "message": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "İzleme başlatıldı",
			"params":  controller.Status().Params,
		})
	}
}

func handleStopWatch(controller *session.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := controller.Stop(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "İzleme durduruldu"})
	}
}

func handleStatus(controller *session.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, controller.Status())
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	}
}

func handleHistory(recorder *history.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		sessions, err := recorder.RecentSessions(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
			return
		}
		if sessions == nil {
			sessions = []history.Session{}
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "sessions": sessions})
	}
}
