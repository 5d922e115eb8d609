package broker

import (
	"context"
	"errors"

	"github.com/dkeye/callbridge/internal/app"
	"github.com/dkeye/callbridge/internal/core"
	"github.com/rs/zerolog/log"
)

// OnClientFrame forwards raw client audio to the paired worker.
func (b *Broker) OnClientFrame(ctx context.Context, conn core.Connection, frame core.Frame) {
	peer, ok := b.Registry.PeerOf(conn.ID())
	if !ok {
		log.Debug().Err(core.ErrPeerUnavailable).Str("module", "broker").Str("conn_id", string(conn.ID())).Int("len", len(frame)).Msg("client frame dropped")
		return
	}
	b.forward(ctx, peer, peer.TrySend(frame))
}

// OnWorkerFrame decodes a worker frame: audio goes to the client,
// transcripts go to the store.
func (b *Broker) OnWorkerFrame(ctx context.Context, conn core.Connection, frame core.Frame) {
	wf := core.DecodeWorkerFrame(frame)
	switch wf.Kind {
	case core.KindAudioChunk:
		peer, ok := b.Registry.PeerOf(conn.ID())
		if !ok {
			log.Debug().Err(core.ErrPeerUnavailable).Str("module", "broker").Str("conn_id", string(conn.ID())).Msg("worker audio dropped")
			return
		}
		b.forward(ctx, peer, peer.TrySend(core.Frame(wf.Payload)))
	case core.KindUserTranscript, core.KindAiTranscript:
		callID, ok := b.Registry.CallOf(conn.ID())
		if !ok {
			log.Debug().Str("module", "broker").Str("conn_id", string(conn.ID())).Stringer("kind", wf.Kind).Msg("transcript without call dropped")
			return
		}
		speaker, _ := wf.Kind.Speaker()
		if err := b.Sessions.PersistMessage(ctx, callID, speaker, wf.Text()); err != nil {
			log.Error().Err(err).Str("module", "broker").Stringer("call_id", callID).Msg("persist message failed")
		}
	default:
		log.Warn().Err(core.ErrMalformedFrame).Str("module", "broker").Str("conn_id", string(conn.ID())).
			Uint8("header", wf.Header).Int("len", len(wf.Payload)).Msg("unknown worker frame dropped")
	}
}

// OnWorkerText handles JSON control frames sent by a worker.
func (b *Broker) OnWorkerText(ctx context.Context, conn core.Connection, data []byte) {
	typ, err := core.ControlType(data)
	if err != nil {
		log.Debug().Err(err).Str("module", "broker").Str("conn_id", string(conn.ID())).Msg("worker text dropped")
		return
	}
	switch typ {
	case core.ControlReady:
		callID, ok := b.Registry.CallOf(conn.ID())
		if !ok {
			return
		}
		if peer, ok := b.Registry.PeerOf(conn.ID()); ok {
			if msg, err := core.EncodeReady(); err == nil {
				b.forward(ctx, peer, peer.TrySendText(msg))
			}
		}
		b.Notifier.NotifyClientReady(ctx, callID)
	case core.ControlPing:
		b.pong(conn)
	default:
		log.Debug().Str("module", "broker").Str("type", typ).Msg("unhandled worker control")
	}
}

// OnClientText answers keepalive pings; anything else is ignored.
func (b *Broker) OnClientText(_ context.Context, conn core.Connection, data []byte) {
	typ, err := core.ControlType(data)
	if err != nil || typ != core.ControlPing {
		return
	}
	b.pong(conn)
}

func (b *Broker) pong(conn core.Connection) {
	if msg, err := core.EncodePong(); err == nil {
		_ = conn.TrySendText(msg)
	}
}

// forward applies the policy to a failed send. A dead transport always
// goes through the disconnect path.
func (b *Broker) forward(ctx context.Context, peer core.Connection, err error) {
	if err == nil {
		return
	}
	action := app.KickPeer
	if !errors.Is(err, core.ErrTransportClosed) && b.Policy != nil {
		action = b.Policy.OnForwardFailure(peer, err)
	}
	switch action {
	case app.KickPeer:
		log.Warn().Err(err).Str("module", "broker").Str("conn_id", string(peer.ID())).Msg("kicking peer")
		peer.Close(core.CloseSlowPeer)
		b.OnDisconnect(ctx, peer)
	case app.DropFrame, app.NoAction:
		log.Debug().Err(err).Str("module", "broker").Str("conn_id", string(peer.ID())).Msg("frame dropped")
	}
}
