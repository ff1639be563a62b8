package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"microarp/config"
	"microarp/midi"
	"microarp/transport"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "backends":
		reportBackends()
	case "outputs":
		listOutputs()
	case "note":
		sendNote(os.Args[2:])
	case "panic":
		sendPanic()
	case "listen":
		listen(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Probe")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  backends       - Report which transport backends come up")
	fmt.Println("  outputs        - List outputs on the selected backend")
	fmt.Println("  note [ratio]   - Send one encoded test note (default 5/4)")
	fmt.Println("  panic          - Sweep all 16 channels silent")
	fmt.Println("  listen [secs]  - Dump decoded inbound messages")
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}
	cfg.Validate()
	return cfg
}

func candidates(cfg *config.Config) []transport.Transport {
	return []transport.Transport{
		transport.NewHostBridge(cfg.Transport.BridgeURL),
		transport.NewSerialBridge(cfg.Transport.SerialDevice, cfg.Transport.SerialBaud),
		transport.NewNative(cfg.Transport.InputPort),
	}
}

func openTransport() transport.Transport {
	cfg := loadConfig()
	tr := transport.Probe(candidates(cfg)...)
	tr.SelectOutput(cfg.Transport.OutputPort)
	return tr
}

func reportBackends() {
	cfg := loadConfig()

	fmt.Println("=== Transport Backends (probe order) ===")
	for _, tr := range candidates(cfg) {
		if tr.Initialize() {
			fmt.Printf("  %-13s OK (%d outputs)\n", tr.Name(), len(tr.EnumerateOutputs()))
			tr.Close()
		} else {
			fmt.Printf("  %-13s unavailable\n", tr.Name())
		}
	}
}

func listOutputs() {
	tr := openTransport()
	defer tr.Close()

	fmt.Printf("=== Outputs on %s ===\n", tr.Name())
	outs := tr.EnumerateOutputs()
	if len(outs) == 0 {
		fmt.Println("  (none)")
		return
	}
	for i, o := range outs {
		fmt.Printf("  %d: %s\n", i, o.DisplayName)
	}
}

func sendNote(args []string) {
	ratio := 1.25
	if len(args) > 0 {
		r, err := parseRatio(args[0])
		if err != nil {
			fmt.Printf("bad ratio %q: %v\n", args[0], err)
			return
		}
		ratio = r
	}

	cfg := loadConfig()
	tr := transport.Probe(candidates(cfg)...)
	defer tr.Close()
	tr.SelectOutput(cfg.Transport.OutputPort)

	note, bend := midi.EncodePitch(ratio, cfg.Tuning.BaseFrequencyHz, cfg.Tuning.BendRangeSemitones)
	fmt.Printf("backend: %s\n", tr.Name())
	fmt.Printf("ratio %.6f -> note %d, bend %d\n", ratio, note, bend)

	tr.SendBytes(midi.PitchBendBytes(0, bend))
	tr.SendBytes(midi.NoteOnBytes(0, uint8(note)))
	time.Sleep(500 * time.Millisecond)
	tr.SendBytes(midi.NoteOffBytes(0, uint8(note)))
	fmt.Println("sent")
}

func sendPanic() {
	tr := openTransport()
	defer tr.Close()

	alloc := midi.NewAllocator(tr.SendBytes, 440, 12)
	alloc.Panic()
	fmt.Printf("panic sweep sent on %s\n", tr.Name())
}

func listen(args []string) {
	secs := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			secs = n
		}
	}

	tr := openTransport()
	defer tr.Close()

	fmt.Printf("listening on %s for %ds...\n", tr.Name(), secs)
	tr.SetReceiveCallback(func(status, data1, data2 byte) {
		stamp := time.Now().Format("15:04:05.000")
		msg := midi.ParseMessage(status, data1, data2)
		switch msg.Kind {
		case midi.KindSustain:
			fmt.Printf("[%s] %02X %02X %02X  sustain %v\n", stamp, status, data1, data2, msg.Sustain)
		case midi.KindMasterBend:
			fmt.Printf("[%s] %02X %02X %02X  master bend %+.3fst\n", stamp, status, data1, data2, msg.Semitones)
		default:
			fmt.Printf("[%s] %02X %02X %02X\n", stamp, status, data1, data2)
		}
	})

	time.Sleep(time.Duration(secs) * time.Second)
}

// parseRatio accepts "3/2" fractions or plain decimals.
func parseRatio(s string) (float64, error) {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator")
		}
		return n / d, nil
	}
	return strconv.ParseFloat(s, 64)
}
