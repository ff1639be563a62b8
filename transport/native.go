package transport

import (
	"strings"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"microarp/debug"
)

// Native sends through real MIDI output ports via the system driver and
// listens on one input port for pedal and master-bend messages.
type Native struct {
	mu        sync.Mutex
	inputName string // preferred input port, "" = first available
	outPorts  []drivers.Out
	outPort   drivers.Out
	send      func(msg gomidi.Message) error
	stopFunc  func()
	receive   ReceiveFunc
}

// NewNative creates the native backend. inputName selects the inbound port
// by case-insensitive substring; empty means the first port found.
func NewNative(inputName string) *Native {
	return &Native{inputName: inputName}
}

func (n *Native) Name() string { return "native" }

// Initialize scans for output ports and the inbound port. No ports (or no
// usable driver) reports false so the probe can move on.
func (n *Native) Initialize() bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.outPorts = gomidi.GetOutPorts()
	if len(n.outPorts) == 0 {
		return false
	}
	debug.Log("transport", "native: %d output ports", len(n.outPorts))

	n.openInput()
	return true
}

func (n *Native) openInput() {
	inPorts := gomidi.GetInPorts()
	if len(inPorts) == 0 {
		return
	}
	inPort := inPorts[0]
	if n.inputName != "" {
		for i, p := range inPorts {
			if strings.Contains(strings.ToLower(p.String()), strings.ToLower(n.inputName)) {
				inPort = inPorts[i]
				break
			}
		}
	}

	stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
		raw := msg.Bytes()
		if len(raw) < 3 {
			return
		}
		n.mu.Lock()
		fn := n.receive
		n.mu.Unlock()
		if fn != nil {
			fn(raw[0], raw[1], raw[2])
		}
	})
	if err != nil {
		debug.Log("transport", "native: open input %s: %v", inPort.String(), err)
		return
	}
	n.stopFunc = stop
	debug.Log("transport", "native: listening on %s", inPort.String())
}

func (n *Native) EnumerateOutputs() []Output {
	n.mu.Lock()
	defer n.mu.Unlock()

	outs := make([]Output, len(n.outPorts))
	for i, p := range n.outPorts {
		outs[i] = Output{ID: p.String(), DisplayName: p.String()}
	}
	return outs
}

// SelectOutput opens a sender to the named port. An empty id picks the
// first port. An unknown id leaves the current selection in place.
func (n *Native) SelectOutput(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var port drivers.Out
	if id == "" && len(n.outPorts) > 0 {
		port = n.outPorts[0]
	}
	for i, p := range n.outPorts {
		if p.String() == id {
			port = n.outPorts[i]
			break
		}
	}
	if port == nil {
		debug.Log("transport", "native: output %q not found", id)
		return
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		debug.Log("transport", "native: open output %s: %v", port.String(), err)
		return
	}
	n.outPort = port
	n.send = send
	debug.Log("transport", "native: output %s", port.String())
}

func (n *Native) SendBytes(b []byte) {
	n.mu.Lock()
	send := n.send
	n.mu.Unlock()

	if send == nil {
		debug.LogEvery(100, "transport", "native: no output selected, dropping")
		return
	}
	if err := send(gomidi.Message(b)); err != nil {
		debug.Log("transport", "native: send: %v", err)
	}
}

func (n *Native) SetReceiveCallback(fn ReceiveFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receive = fn
}

// SetTransportCallback is a no-op: real MIDI ports carry no host clock.
func (n *Native) SetTransportCallback(fn InfoFunc) {}

func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopFunc != nil {
		n.stopFunc()
		n.stopFunc = nil
	}
	n.send = nil
	if n.outPort != nil {
		err := n.outPort.Close()
		n.outPort = nil
		return err
	}
	return nil
}
