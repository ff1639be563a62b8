package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"microarp/debug"
)

const hostOutputID = "host"

// bridgeFrame is the JSON envelope on the plugin-host link, both directions.
// "midi" frames carry raw bytes; "transport" frames carry the host clock,
// which the host pushes whenever it changes (never pulled).
type bridgeFrame struct {
	Type     string  `json:"type"`
	Bytes    []int   `json:"bytes,omitempty"`
	Playing  bool    `json:"playing,omitempty"`
	BPM      float64 `json:"bpm,omitempty"`
	Position float64 `json:"position,omitempty"`
}

// HostBridge connects to a plugin-host bridge over a websocket. The host
// presents exactly one fixed "host track" output.
type HostBridge struct {
	mu        sync.Mutex
	url       string
	conn      *websocket.Conn
	receive   ReceiveFunc
	transport InfoFunc
	closed    bool
}

// NewHostBridge creates the bridge for the given websocket URL.
func NewHostBridge(url string) *HostBridge {
	return &HostBridge{url: url}
}

func (h *HostBridge) Name() string { return "host-bridge" }

// Initialize dials the host. No listener within the handshake timeout
// reports false.
func (h *HostBridge) Initialize() bool {
	if h.url == "" {
		return false
	}
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(h.url, nil)
	if err != nil {
		debug.Log("transport", "bridge: dial %s: %v", h.url, err)
		return false
	}

	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()

	go h.readLoop(conn)
	debug.Log("transport", "bridge: connected %s", h.url)
	return true
}

func (h *HostBridge) EnumerateOutputs() []Output {
	return []Output{{ID: hostOutputID, DisplayName: "Host Track"}}
}

// SelectOutput is a no-op: the host track is the only output.
func (h *HostBridge) SelectOutput(id string) {}

func (h *HostBridge) SendBytes(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		return
	}
	frame := bridgeFrame{Type: "midi", Bytes: toInts(b)}
	if err := h.conn.WriteJSON(frame); err != nil {
		debug.Log("transport", "bridge: write: %v", err)
	}
}

func (h *HostBridge) SetReceiveCallback(fn ReceiveFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.receive = fn
}

func (h *HostBridge) SetTransportCallback(fn InfoFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transport = fn
}

func (h *HostBridge) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	if h.conn != nil {
		err := h.conn.Close()
		h.conn = nil
		return err
	}
	return nil
}

func (h *HostBridge) readLoop(conn *websocket.Conn) {
	for {
		var frame bridgeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			h.mu.Lock()
			closed := h.closed
			h.mu.Unlock()
			if !closed {
				debug.Log("transport", "bridge: read: %v", err)
			}
			return
		}

		h.mu.Lock()
		receive := h.receive
		transport := h.transport
		h.mu.Unlock()

		switch frame.Type {
		case "midi":
			if receive != nil && len(frame.Bytes) >= 3 {
				receive(byte(frame.Bytes[0]), byte(frame.Bytes[1]), byte(frame.Bytes[2]))
			}
		case "transport":
			if transport != nil {
				transport(Info{Playing: frame.Playing, BPM: frame.BPM, Position: frame.Position})
			}
		}
	}
}

func toInts(b []byte) []int {
	out := make([]int, len(b))
	for i, x := range b {
		out[i] = int(x)
	}
	return out
}
