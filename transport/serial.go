package transport

import (
	"sync"

	"go.bug.st/serial"

	"microarp/debug"
)

// Serial frame layout, both directions:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and every payload
// byte. MIDI payloads are the raw 3-byte messages.
const (
	sofA       byte = 0xAA
	sofB       byte = 0x55
	cmdMIDIOut byte = 0x01 // host-bound MIDI
	cmdMIDIIn  byte = 0x02 // device-to-host MIDI
)

const bridgeOutputID = "bridge"

// SerialBridge relays MIDI to an embedded desktop host over a serial link.
// The host presents exactly one virtual output.
type SerialBridge struct {
	mu      sync.Mutex
	device  string
	baud    int
	port    serial.Port
	receive ReceiveFunc
	closed  bool
}

// NewSerialBridge creates the bridge for the named serial device.
func NewSerialBridge(device string, baud int) *SerialBridge {
	return &SerialBridge{device: device, baud: baud}
}

func (s *SerialBridge) Name() string { return "serial-bridge" }

// Initialize opens the serial port and starts the inbound reader. A missing
// or busy device reports false.
func (s *SerialBridge) Initialize() bool {
	if s.device == "" {
		return false
	}
	mode := &serial.Mode{BaudRate: s.baud}
	port, err := serial.Open(s.device, mode)
	if err != nil {
		debug.Log("transport", "serial: open %s: %v", s.device, err)
		return false
	}

	s.mu.Lock()
	s.port = port
	s.mu.Unlock()

	go s.readLoop(port)
	debug.Log("transport", "serial: connected %s @ %d", s.device, s.baud)
	return true
}

func (s *SerialBridge) EnumerateOutputs() []Output {
	return []Output{{ID: bridgeOutputID, DisplayName: "Serial Bridge"}}
}

// SelectOutput is a no-op: the bridge has a single fixed output.
func (s *SerialBridge) SelectOutput(id string) {}

func (s *SerialBridge) SendBytes(b []byte) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return
	}
	if _, err := port.Write(encodeFrame(cmdMIDIOut, b)); err != nil {
		debug.Log("transport", "serial: write: %v", err)
	}
}

func (s *SerialBridge) SetReceiveCallback(fn ReceiveFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receive = fn
}

// SetTransportCallback is a no-op: the embedded host has no clock to push.
func (s *SerialBridge) SetTransportCallback(fn InfoFunc) {}

func (s *SerialBridge) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.port != nil {
		err := s.port.Close()
		s.port = nil
		return err
	}
	return nil
}

func (s *SerialBridge) readLoop(port serial.Port) {
	var dec frameDecoder
	buf := make([]byte, 64)
	for {
		n, err := port.Read(buf)
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				debug.Log("transport", "serial: read: %v", err)
			}
			return
		}
		for _, b := range buf[:n] {
			cmd, payload, ok := dec.feed(b)
			if !ok || cmd != cmdMIDIIn || len(payload) < 3 {
				continue
			}
			s.mu.Lock()
			fn := s.receive
			s.mu.Unlock()
			if fn != nil {
				fn(payload[0], payload[1], payload[2])
			}
		}
	}
}

func encodeFrame(cmd byte, payload []byte) []byte {
	length := byte(len(payload) + 1)
	cks := length ^ cmd
	for _, b := range payload {
		cks ^= b
	}
	out := []byte{sofA, sofB, length, cmd}
	out = append(out, payload...)
	out = append(out, cks)
	return out
}

// frameDecoder is a byte-at-a-time parser for the frame layout above.
// Garbage between frames is skipped by hunting for the SOF pair.
type frameDecoder struct {
	state   int // 0=sof0 1=sof1 2=len 3=body
	length  int
	body    []byte
	pending int
}

func (d *frameDecoder) feed(b byte) (cmd byte, payload []byte, ok bool) {
	switch d.state {
	case 0:
		if b == sofA {
			d.state = 1
		}
	case 1:
		if b == sofB {
			d.state = 2
		} else if b != sofA {
			d.state = 0
		}
	case 2:
		if b == 0 || int(b) > 32 {
			d.state = 0
			break
		}
		d.length = int(b)
		d.pending = d.length + 1 // body + checksum
		d.body = d.body[:0]
		d.state = 3
	case 3:
		d.body = append(d.body, b)
		d.pending--
		if d.pending > 0 {
			break
		}
		d.state = 0
		cks := byte(d.length)
		for _, x := range d.body[:d.length] {
			cks ^= x
		}
		if cks != d.body[d.length] {
			debug.LogEvery(10, "transport", "serial: bad checksum")
			break
		}
		return d.body[0], d.body[1:d.length], true
	}
	return 0, nil, false
}
