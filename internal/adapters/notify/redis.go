// Package notify publishes call status events for other services.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	EventReady = "ready"
	EventEnded = "ended"

	defaultChannel = "callbridge:calls"
	defaultTimeout = 2 * time.Second
)

// Event is the JSON body published per status change.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
	AtUnixMs  int64  `json:"atUnixMs"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	Timeout  time.Duration
}

// Redis publishes events on a pub/sub channel. Publishing happens in the
// background and failures are only logged.
type Redis struct {
	client  publisher
	closer  func() error
	channel string
	timeout time.Duration
	now     func() time.Time
	wg      conc.WaitGroup
}

var _ core.Notifier = (*Redis)(nil)

// NewRedis connects and pings once so a bad address fails at startup.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	r := newRedis(client, opts)
	r.closer = client.Close

	pingCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	log.Info().Str("module", "notify").Str("addr", opts.Addr).Str("channel", r.channel).Msg("redis notifier enabled")
	return r, nil
}

func newRedis(client publisher, opts RedisOptions) *Redis {
	r := &Redis{
		client:  client,
		channel: opts.Channel,
		timeout: opts.Timeout,
		now:     time.Now,
	}
	if r.channel == "" {
		r.channel = defaultChannel
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	return r
}

func (r *Redis) NotifyClientReady(ctx context.Context, callID domain.CallID) {
	r.publish(ctx, Event{Type: EventReady, SessionID: callID.String()})
}

func (r *Redis) NotifyCallEnded(ctx context.Context, callID domain.CallID, reason string) {
	r.publish(ctx, Event{Type: EventEnded, SessionID: callID.String(), Reason: reason})
}

func (r *Redis) publish(ctx context.Context, ev Event) {
	ev.AtUnixMs = r.now().UnixMilli()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "notify").Msg("encode event")
		return
	}
	ctx = context.WithoutCancel(ctx)
	r.wg.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
			log.Warn().Err(err).Str("module", "notify").Str("type", ev.Type).Str("session_id", ev.SessionID).Msg("publish failed")
		}
	})
}

// Close waits for in-flight publishes and releases the client.
func (r *Redis) Close() error {
	r.wg.Wait()
	if r.closer != nil {
		return r.closer()
	}
	return nil
}
