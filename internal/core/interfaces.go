package core

// Frame is a raw binary payload (e.g., audio frame).
type Frame []byte

type ConnID string

// Role tags a connection so the broker can dispatch on it.
type Role int

const (
	RoleClient Role = iota + 1
	RoleWorker
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleWorker:
		return "WORKER"
	default:
		return "UNKNOWN"
	}
}

// CloseReason mirrors a WebSocket close status (RFC 6455 codes).
type CloseReason struct {
	Code int
	Text string
}

var (
	CloseNormal       = CloseReason{Code: 1000, Text: "call ended"}
	CloseHangup       = CloseReason{Code: 1000, Text: "call ended by API"}
	CloseGoingAway    = CloseReason{Code: 1001, Text: "server shutting down"}
	CloseBadSessionID = CloseReason{Code: 1007, Text: "missing or invalid sessionId"}
	CloseUnknownCall  = CloseReason{Code: 1008, Text: "unknown call"}
	CloseCallEnded    = CloseReason{Code: 1008, Text: "call already ended"}
	CloseDuplicate    = CloseReason{Code: 1008, Text: "call already connected"}
	CloseWorkerLost   = CloseReason{Code: 1011, Text: "worker disconnected"}
	CloseUnavailable  = CloseReason{Code: 1011, Text: "worker unavailable"}
	CloseSlowPeer     = CloseReason{Code: 1013, Text: "peer cannot keep up"}
)

// Connection abstracts a live bidirectional transport endpoint.
// Owned by the adapter; the broker only holds it while the call lasts.
//
// TrySend and TrySendText never block: a full outbound queue returns
// ErrBackpressure, a dead transport returns ErrTransportClosed.
type Connection interface {
	ID() ConnID
	Role() Role
	TrySend(Frame) error
	TrySendText([]byte) error
	Close(CloseReason)
	Closed() bool
}

// BrokerStats is a read-only view for APIs.
type BrokerStats struct {
	IdleWorkers    int `json:"idleWorkers"`
	PendingClients int `json:"pendingClients"`
	ActiveCalls    int `json:"activeCalls"`
}

