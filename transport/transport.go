// Package transport abstracts the hosts microarp can emit MIDI through: a
// plugin-host websocket bridge, an embedded-host serial bridge, or real MIDI
// ports. One backend is chosen at startup and kept for the process lifetime.
package transport

import "microarp/debug"

// Output identifies a selectable destination on a backend.
type Output struct {
	ID          string
	DisplayName string
}

// Info is host clock state pushed in by bridge backends.
type Info struct {
	Playing  bool
	BPM      float64
	Position float64
}

// ReceiveFunc is called for every decoded inbound MIDI message.
type ReceiveFunc func(status, data1, data2 byte)

// InfoFunc is called when a backend learns new host transport state.
type InfoFunc func(Info)

// Transport is the capability set every backend implements. Initialize
// reports availability instead of returning an error: a missing host is a
// normal runtime state. After a failed Initialize no other method is called
// except Close.
type Transport interface {
	Name() string
	Initialize() bool
	EnumerateOutputs() []Output
	SelectOutput(id string)
	SendBytes(b []byte)
	SetReceiveCallback(fn ReceiveFunc)
	SetTransportCallback(fn InfoFunc)
	Close() error
}

// Probe initializes candidates in the given order and freezes the first one
// that comes up. The choice is final: there is no re-probing or fallback
// later. If every candidate fails, the disabled transport is returned and
// all sends are silently dropped.
func Probe(candidates ...Transport) Transport {
	for _, t := range candidates {
		if t.Initialize() {
			debug.Log("transport", "selected backend: %s", t.Name())
			return t
		}
		debug.Log("transport", "backend unavailable: %s", t.Name())
		t.Close()
	}
	debug.Log("transport", "no backend available, running disabled")
	return Disabled{}
}

// Disabled is the no-transport state. Every send is dropped without error.
type Disabled struct{}

func (Disabled) Name() string                   { return "disabled" }
func (Disabled) Initialize() bool               { return false }
func (Disabled) EnumerateOutputs() []Output     { return nil }
func (Disabled) SelectOutput(string)            {}
func (Disabled) SendBytes([]byte)               {}
func (Disabled) SetReceiveCallback(ReceiveFunc) {}
func (Disabled) SetTransportCallback(InfoFunc)  {}
func (Disabled) Close() error                   { return nil }
