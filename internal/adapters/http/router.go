package http

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/dkeye/convo/internal/adapters/signal"
	"github.com/dkeye/convo/internal/app/orch"
	"github.com/dkeye/convo/internal/config"
	"github.com/dkeye/convo/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenKey = "ct"
	sseHeartbeat   = 25 * time.Second
)

// ClientTokenMiddleware pins a random token to the browser session so
// log lines from one tab can be correlated across reconnects.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get(clientTokenKey).(string)
		if token == "" {
			token = uuid.NewString()
			s.Set(clientTokenKey, token)
			if err := s.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type Deps struct {
	Orch     *orch.Orchestrator
	Signal   *signal.SignalWSController
	Presence core.PresenceStore
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn().Str("module", "adapters.http").Msg("no session secret configured, using an ephemeral one")
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("ConvoSessions", store))
	r.Use(ClientTokenMiddleware())

	signalHandler := func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		d.Signal.HandleSignal(ctx, c)
	}

	r.Static("/static", cfg.StaticPath)
	// The bundled client dials the page origin itself.
	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			signalHandler(c)
			return
		}
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.GET("/ws/signal", signalHandler)
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Orch.Rooms())
	})

	if d.Presence != nil {
		api.GET("/presence", func(c *gin.Context) {
			recs, err := d.Presence.List(c.Request.Context())
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("presence list")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "presence unavailable"})
				return
			}
			if recs == nil {
				recs = []core.PresenceRecord{}
			}
			c.JSON(http.StatusOK, recs)
		})
		api.GET("/presence/stream", func(c *gin.Context) {
			changes := d.Presence.Subscribe(c.Request.Context())
			heartbeat := time.NewTicker(sseHeartbeat)
			defer heartbeat.Stop()

			c.Header("Cache-Control", "no-cache")
			c.Header("X-Accel-Buffering", "no")
			// Initial comment so proxies flush headers.
			c.Writer.Header().Set("Content-Type", "text/event-stream")
			_, _ = c.Writer.WriteString(": ok\n\n")
			c.Writer.Flush()

			c.Stream(func(w io.Writer) bool {
				select {
				case rec, ok := <-changes:
					if !ok {
						return false
					}
					c.SSEvent("presence", rec)
				case <-heartbeat.C:
					_, _ = io.WriteString(w, ": ping\n\n")
				}
				return true
			})
		})
	}

	return r
}
