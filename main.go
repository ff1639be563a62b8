package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"microarp/arp"
	"microarp/config"
	"microarp/debug"
	"microarp/theme"
	"microarp/transport"
	"microarp/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		os.Exit(1)
	}
	cfg.Validate()

	if cfg.Debug || os.Getenv("MICROARP_DEBUG") != "" {
		debug.Enable()
	}

	// Load theme, falling back to the built-in palette
	palette, err := theme.LoadGPL("palettes/microarp.gpl")
	if err != nil {
		palette = theme.Default()
	}
	th := theme.New(palette)

	// Probe transports in preference order: host bridge, serial bridge,
	// native MIDI. The first backend that comes up serves the whole run;
	// with none available the encoder runs silent.
	tr := transport.Probe(
		transport.NewHostBridge(cfg.Transport.BridgeURL),
		transport.NewSerialBridge(cfg.Transport.SerialDevice, cfg.Transport.SerialBaud),
		transport.NewNative(cfg.Transport.InputPort),
	)
	defer tr.Close()
	tr.SelectOutput(cfg.Transport.OutputPort)

	engine := arp.NewEngine(tr, debugSink{}, arp.Settings{
		TempoBPM:        cfg.TempoBPM,
		BaseFrequencyHz: cfg.Tuning.BaseFrequencyHz,
		BendRange:       cfg.Tuning.BendRangeSemitones,
		Clock:           cfg.Arp,
	})
	engine.SetPattern(defaultPattern())

	fmt.Println("microarp")
	fmt.Printf("MIDI backend: %s\n", tr.Name())
	fmt.Println("")

	m := tui.NewModel(engine, th)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	engine.Stop()
}

// debugSink traces voice lifetimes in the debug log. The synth voices
// themselves live out of process.
type debugSink struct{}

func (debugSink) StartVoice(id string, ratio, baseFrequencyHz float64) {
	debug.Log("voice", "start %s ratio=%.4f base=%.2f", id, ratio, baseFrequencyHz)
}

func (debugSink) StopVoice(id string) {
	debug.Log("voice", "stop %s", id)
}

// defaultPattern is a just-intonation major seventh arpeggio, the
// out-of-the-box sound until a recorded pattern arrives.
func defaultPattern() arp.Pattern {
	return arp.Pattern{
		{VoiceRef: "1/1", Ratio: 1.0},
		{VoiceRef: "5/4", Ratio: 5.0 / 4.0},
		{VoiceRef: "3/2", Ratio: 3.0 / 2.0},
		{VoiceRef: "15/8", Ratio: 15.0 / 8.0},
	}
}
