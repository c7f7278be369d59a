// control_server.go - HTTP control API for remote playback.

package main

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StartControlServer runs the control API until the listener fails.
// The server drives the one player it is given; concurrent requests
// serialise on the player's own locking.
func StartControlServer(addr string, player *StreamPlayer, log *zap.Logger) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	r.GET("/health", handleHealth)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", handleHealth)
		v1.GET("/devices", handleDevices)
		v1.GET("/banks", handleBanks)
		v1.GET("/status", statusHandler(player))
		v1.POST("/play", playHandler(player, log))
		v1.POST("/stop", stopHandler(player))
		v1.POST("/pause", pauseHandler(player, true))
		v1.POST("/resume", pauseHandler(player, false))
	}

	if log != nil {
		log.Info("control API listening", zap.String("addr", addr))
	}
	return r.Run(addr)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "vireo",
		"version": Version,
	})
}

func handleDevices(c *gin.Context) {
	type deviceJSON struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Kind      string `json:"kind"`
		Available bool   `json:"available"`
	}
	devices := make([]deviceJSON, 0, 8)
	for _, d := range GetMidiDevices() {
		devices = append(devices, deviceJSON{
			ID:        d.ID,
			Name:      d.Name,
			Kind:      d.Kind,
			Available: d.Available,
		})
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices})
}

func handleBanks(c *gin.Context) {
	names := ADLBankNames()
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"banks": names})
}

func statusHandler(player *StreamPlayer) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := player.Metadata()
		c.JSON(http.StatusOK, gin.H{
			"playing":          player.IsPlaying(),
			"paused":           player.device.Paused(),
			"song":             meta.Path,
			"format":           meta.Format,
			"division":         meta.Division,
			"position_seconds": player.PositionSeconds(),
			"duration_seconds": player.DurationSeconds(),
			"position":         player.PositionText(),
			"duration":         player.DurationText(),
		})
	}
}

// playHandler accepts a song as a multipart upload under "file", or a
// server-side path in a JSON body. The loop query parameter or JSON
// field selects looped playback.
func playHandler(player *StreamPlayer, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		loop := c.Query("loop") == "1" || c.Query("loop") == "true"

		if file, header, err := c.Request.FormFile("file"); err == nil {
			defer func() { _ = file.Close() }()
			data, err := io.ReadAll(file)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
				return
			}
			if err := player.LoadData(data); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if log != nil {
				log.Info("song uploaded", zap.String("name", header.Filename), zap.Int("bytes", len(data)))
			}
		} else {
			var req struct {
				Path string `json:"path"`
				Loop bool   `json:"loop"`
			}
			if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "need a file upload or a path"})
				return
			}
			loop = loop || req.Loop
			if err := player.Load(req.Path); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		player.SetLoop(loop)
		if err := player.Play(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"playing":  true,
			"duration": player.DurationText(),
		})
	}
}

func stopHandler(player *StreamPlayer) gin.HandlerFunc {
	return func(c *gin.Context) {
		player.Stop()
		c.JSON(http.StatusOK, gin.H{"playing": false})
	}
}

func pauseHandler(player *StreamPlayer, paused bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		player.device.SetPaused(paused)
		c.JSON(http.StatusOK, gin.H{
			"playing": player.IsPlaying(),
			"paused":  paused,
		})
	}
}
