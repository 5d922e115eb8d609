package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/callbridge/internal/core"
	"github.com/dkeye/callbridge/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Broker is the part of the call broker the socket endpoints drive.
type Broker interface {
	RegisterClient(ctx context.Context, callID domain.CallID, conn core.Connection) error
	RegisterWorker(ctx context.Context, conn core.Connection) error
	OnClientFrame(ctx context.Context, conn core.Connection, frame core.Frame)
	OnWorkerFrame(ctx context.Context, conn core.Connection, frame core.Frame)
	OnClientText(ctx context.Context, conn core.Connection, data []byte)
	OnWorkerText(ctx context.Context, conn core.Connection, data []byte)
	OnDisconnect(ctx context.Context, conn core.Connection)
}

type Controller struct {
	Broker   Broker
	Options  Options
	upgrader websocket.Upgrader

	mu       sync.Mutex
	draining bool
	runs     conc.WaitGroup
}

func NewController(b Broker, opts Options) *Controller {
	opts = opts.withDefaults()
	return &Controller{
		Broker:  b,
		Options: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(opts.AllowedOrigins),
		},
	}
}

// checkOrigin accepts requests without an Origin header (workers and other
// non-browser peers), same-host origins and the configured ones. "*"
// accepts everything.
func checkOrigin(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	_, all := set["*"]
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || all {
			return true
		}
		if _, ok := set[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// HandleClient serves GET /ws/client?sessionId=<id>. The call id is checked
// after the upgrade so the client gets a proper close status.
func (ctl *Controller) HandleClient(c *gin.Context) {
	raw := c.Query("sessionId")
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("client upgrade failed")
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if !ctl.track(func() { ctl.serveClient(ctx, ws, raw) }) {
		ctl.reject(ws, core.CloseGoingAway)
	}
}

func (ctl *Controller) serveClient(ctx context.Context, ws *websocket.Conn, raw string) {
	callID, err := domain.ParseCallID(raw)
	if err != nil {
		log.Warn().Str("module", "ws").Str("session_id", raw).Msg("client rejected: bad sessionId")
		ctl.reject(ws, core.CloseBadSessionID)
		return
	}

	conn := NewConn(core.RoleClient, ws, ctl.Options)
	if err := ctl.Broker.RegisterClient(ctx, callID, conn); err != nil {
		reason := rejectReason(err)
		log.Warn().Err(err).Str("module", "ws").Stringer("call_id", callID).Int("code", reason.Code).Msg("client rejected")
		ctl.reject(ws, reason)
		return
	}
	log.Info().Str("module", "ws").Stringer("call_id", callID).Str("conn_id", string(conn.ID())).Msg("client connected")
	conn.Run(ctx, clientHandler{ctl.Broker})
}

// HandleWorker serves GET /ws/worker. workerId is only a log label.
func (ctl *Controller) HandleWorker(c *gin.Context) {
	label := c.Query("workerId")
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("worker upgrade failed")
		return
	}
	ctx := context.WithoutCancel(c.Request.Context())
	if !ctl.track(func() { ctl.serveWorker(ctx, ws, label) }) {
		ctl.reject(ws, core.CloseGoingAway)
	}
}

func (ctl *Controller) serveWorker(ctx context.Context, ws *websocket.Conn, label string) {
	conn := NewConn(core.RoleWorker, ws, ctl.Options)
	if err := ctl.Broker.RegisterWorker(ctx, conn); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("worker", label).Msg("worker rejected")
		ctl.reject(ws, rejectReason(err))
		return
	}
	log.Info().Str("module", "ws").Str("worker", label).Str("conn_id", string(conn.ID())).Msg("worker connected")
	conn.Run(ctx, workerHandler{ctl.Broker})
}

// track runs a socket on its own goroutine. Hijacked connections outlive
// http.Server.Shutdown, so Drain waits for them instead.
func (ctl *Controller) track(run func()) bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	if ctl.draining {
		return false
	}
	ctl.runs.Go(run)
	return true
}

// Drain refuses new sockets and waits until every running one has gone
// through its disconnect path, or until ctx is done.
func (ctl *Controller) Drain(ctx context.Context) error {
	ctl.mu.Lock()
	ctl.draining = true
	ctl.mu.Unlock()

	done := make(chan struct{})
	go func() {
		ctl.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ctl *Controller) reject(ws WSConn, reason core.CloseReason) {
	deadline := time.Now().Add(ctl.Options.WriteTimeout)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(reason.Code, reason.Text), deadline)
	_ = ws.Close()
}

func rejectReason(err error) core.CloseReason {
	switch {
	case errors.Is(err, domain.ErrUnknownCall):
		return core.CloseUnknownCall
	case errors.Is(err, domain.ErrCallEnded):
		return core.CloseCallEnded
	case errors.Is(err, core.ErrDuplicateBinding), errors.Is(err, core.ErrAlreadyPaired):
		return core.CloseDuplicate
	case errors.Is(err, core.ErrShuttingDown):
		return core.CloseGoingAway
	default:
		return core.CloseUnavailable
	}
}

type clientHandler struct{ b Broker }

func (h clientHandler) OnFrame(ctx context.Context, conn core.Connection, f core.Frame) {
	h.b.OnClientFrame(ctx, conn, f)
}

func (h clientHandler) OnText(ctx context.Context, conn core.Connection, data []byte) {
	h.b.OnClientText(ctx, conn, data)
}

func (h clientHandler) OnDisconnect(ctx context.Context, conn core.Connection) {
	h.b.OnDisconnect(ctx, conn)
}

type workerHandler struct{ b Broker }

func (h workerHandler) OnFrame(ctx context.Context, conn core.Connection, f core.Frame) {
	h.b.OnWorkerFrame(ctx, conn, f)
}

func (h workerHandler) OnText(ctx context.Context, conn core.Connection, data []byte) {
	h.b.OnWorkerText(ctx, conn, data)
}

func (h workerHandler) OnDisconnect(ctx context.Context, conn core.Connection) {
	h.b.OnDisconnect(ctx, conn)
}
