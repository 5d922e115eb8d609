package http

import (
	"context"

	"github.com/dkeye/callbridge/internal/adapters/ws"
	"github.com/dkeye/callbridge/internal/config"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CallStore is what the REST layer needs from persistence.
type CallStore interface {
	CreateVoiceProfile(ctx context.Context, userID domain.UserID, name string) (*domain.VoiceProfile, error)
	CreateSession(ctx context.Context, userID domain.UserID, voiceProfileID domain.VoiceProfileID) (domain.CallID, error)
	GetSession(ctx context.Context, callID domain.CallID) (*domain.CallSession, error)
	ListMessages(ctx context.Context, callID domain.CallID) ([]domain.Message, error)
	ListParticipants(ctx context.Context, userID domain.UserID) ([]string, error)
	ListMessagesByParticipant(ctx context.Context, userID domain.UserID, participant string) ([]domain.Message, error)
}

// CallBroker is the hangup and inspection side of the broker.
type CallBroker interface {
	// ForceEnd ends the call and writes its end time.
	ForceEnd(ctx context.Context, callID domain.CallID) error
	State(callID domain.CallID) domain.CallState
	Stats() core.BrokerStats
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every browser with a long lived id for logs.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, store CallStore, broker CallBroker, sockets *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Secret))
	sessionStore.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24, HttpOnly: true})
	r.Use(sessions.Sessions("CallbridgeSession", sessionStore))
	r.Use(ClientTokenMiddleware())

	h := &handlers{
		store:   store,
		broker:  broker,
		limiter: NewCallRateLimiter(cfg.RateLimit.Calls, cfg.RateLimit.Interval),
	}

	api := r.Group("/api")
	api.POST("/voice-profiles", h.createVoiceProfile)
	api.POST("/calls/start", h.startCall)
	api.GET("/calls/:id", h.getCall)
	api.POST("/calls/:id/hangup", h.hangup)
	api.GET("/calls/:id/messages", h.listMessages)
	api.GET("/users/:id/participants", h.listParticipants)
	api.GET("/users/:id/participants/:name/messages", h.listParticipantMessages)
	api.GET("/broker/stats", h.stats)

	r.GET("/ws/client", sockets.HandleClient)
	r.GET("/ws/worker", sockets.HandleWorker)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
