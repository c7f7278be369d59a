// main.go - vireo command line entry point.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	Version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	logLevel string
	logJSON  bool

	backendName string
	outputName  string
	sampleRate  int
	loopPlay    bool
	masterGain  float64
	useTUI      bool

	bankName    string
	numChips    int
	emulatorID  int
	volumeModel int
	chanAlloc   int
	pcmRate     bool
	fullPan     bool
	autoArp     bool
	soundFont   string
	polyphony   int
	portName    string

	serveAddr string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vireo",
	Short: "Event-stream music player for MIDI and MIDS songs",
	Long: `vireo plays standard MIDI files and RIFF MIDS containers through
interchangeable synthesis backends: OPL3 FM (libADLMIDI), OPN2 FM
(libOPNMIDI), SoundFont rendering (pure Go) or a hardware MIDI port.

Examples:
  vireo play doom.mids
  vireo play intro.mid -b opn --loop
  vireo play song.mid -b sf2 --soundfont gm.sf2 --tui
  vireo play song.mid -b port --port "FluidSynth"
  vireo dump doom.mids
  vireo serve --addr :8080`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, commit, date),
}

var playCmd = &cobra.Command{
	Use:   "play <song>",
	Short: "Play a MIDI or MIDS file",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var dumpCmd = &cobra.Command{
	Use:   "dump <song>",
	Short: "Decode a song to its event stream and print it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List synthesis backends and hardware MIDI ports",
	Args:  cobra.NoArgs,
	RunE:  runDevices,
}

var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the OPL3 backend's compiled-in instrument banks",
	Args:  cobra.NoArgs,
	RunE:  runBanks,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Show build-time features",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printFeatures()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log in JSON for machine consumption")

	for _, cmd := range []*cobra.Command{playCmd, serveCmd} {
		cmd.Flags().StringVarP(&backendName, "backend", "b", "adl", "Synthesis backend (adl, opn, sf2, port)")
		cmd.Flags().StringVarP(&outputName, "output", "o", "oto", "Audio output (oto, alsa, null)")
		cmd.Flags().IntVar(&sampleRate, "rate", 44100, "Sample rate in Hz")
		cmd.Flags().Float64Var(&masterGain, "gain", 1.0, "Master output gain")
		cmd.Flags().StringVar(&bankName, "bank", "", "Instrument bank: file name, or built-in index for adl")
		cmd.Flags().IntVar(&numChips, "chips", 0, "Emulated chip count (0 = backend default)")
		cmd.Flags().IntVar(&emulatorID, "emulator", 0, "Emulation core index")
		cmd.Flags().IntVar(&volumeModel, "volume-model", VOLUME_MODEL_AUTO, "Volume range model")
		cmd.Flags().IntVar(&chanAlloc, "chan-alloc", CHAN_ALLOC_AUTO, "Channel allocation mode")
		cmd.Flags().BoolVar(&pcmRate, "pcm-rate", false, "Run FM chips at the PCM rate")
		cmd.Flags().BoolVar(&fullPan, "full-pan", false, "Full-panning stereo (more CPU)")
		cmd.Flags().BoolVar(&autoArp, "auto-arpeggio", false, "Auto arpeggio on overloaded OPN channels")
		cmd.Flags().StringVar(&soundFont, "soundfont", "", "SoundFont file for the sf2 backend")
		cmd.Flags().IntVar(&polyphony, "polyphony", 0, "Voice limit for the sf2 backend (0 = default)")
		cmd.Flags().StringVar(&portName, "port", "", "Hardware MIDI port index or name fragment")
	}
	playCmd.Flags().BoolVarP(&loopPlay, "loop", "l", false, "Loop at end of song")
	playCmd.Flags().BoolVar(&useTUI, "tui", false, "Interactive terminal interface")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(banksCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(featuresCmd)
}

func buildSynthConfig() SynthConfig {
	return SynthConfig{
		ADL: ADLConfig{
			Bank:         bankName,
			Emulator:     emulatorID,
			NumChips:     numChips,
			VolumeModel:  volumeModel,
			ChannelAlloc: chanAlloc,
			RunAtPCMRate: pcmRate,
			FullPan:      fullPan,
		},
		OPN: OPNConfig{
			Bank:         bankName,
			Emulator:     emulatorID,
			NumChips:     numChips,
			VolumeModel:  volumeModel,
			ChannelAlloc: chanAlloc,
			RunAtPCMRate: pcmRate,
			FullPan:      fullPan,
			AutoArpeggio: autoArp,
		},
		SF2: SF2Config{
			SoundFont: soundFont,
			Polyphony: polyphony,
		},
		Port: PortConfig{Port: portName},
	}
}

// buildPlayer assembles backend, device and output from the flags. On
// success the player owns all three.
func buildPlayer(log *zap.Logger) (*StreamPlayer, error) {
	backend, err := SynthBackendByName(backendName)
	if err != nil {
		return nil, err
	}
	synth, err := NewSynthBackend(backend, sampleRate, buildSynthConfig(), log)
	if err != nil {
		// An FM backend that is stubbed out or cannot load its bank
		// falls back to SoundFont rendering when that can construct.
		fmBackend := backend == SYNTH_BACKEND_ADL || backend == SYNTH_BACKEND_OPN
		if !fmBackend || !(errors.Is(err, ErrUnsupportedBackend) || errors.Is(err, ErrBackendUnavailable)) {
			return nil, err
		}
		fb, fbErr := NewSF2Backend(sampleRate, buildSynthConfig(), log)
		if fbErr != nil {
			return nil, err
		}
		log.Warn("fm backend unavailable, using sf2", zap.Error(err))
		synth = fb
	}
	device, err := NewSoftSynthDevice(synth, sampleRate, log)
	if err != nil {
		synth.Close()
		return nil, err
	}
	if err := device.Open(); err != nil {
		synth.Close()
		return nil, err
	}
	outID, err := AudioOutputByName(outputName)
	if err != nil {
		device.Close()
		return nil, err
	}
	output, err := NewAudioOutput(outID, sampleRate, device, log)
	if err != nil {
		device.Close()
		return nil, err
	}
	player := NewStreamPlayer(device, output, log)
	player.SetMasterGain(float32(masterGain))
	return player, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	log, err := newLogger(logLevel, logJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	player, err := buildPlayer(log)
	if err != nil {
		return err
	}
	defer player.Close()

	if err := player.Load(args[0]); err != nil {
		return err
	}
	player.SetLoop(loopPlay)

	if useTUI {
		return runPlayerTUI(player)
	}

	if err := player.Play(); err != nil {
		return err
	}
	meta := player.Metadata()
	if d := player.DurationText(); d != "" {
		fmt.Printf("Playing %s [%s, %s]\n", args[0], meta.Format, d)
	} else {
		fmt.Printf("Playing %s [%s]\n", args[0], meta.Format)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	isTerm := term.IsTerminal(int(os.Stdout.Fd()))
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if isTerm {
				fmt.Println()
			}
			player.Stop()
			return nil
		case <-ticker.C:
			if !player.IsPlaying() {
				if isTerm {
					fmt.Println()
				}
				return nil
			}
			if isTerm {
				fmt.Printf("\r  %s / %s ", player.PositionText(), player.DurationText())
			}
		}
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	src, format, err := loadMusicSource(data)
	if err != nil {
		return err
	}
	fmt.Printf("%s: format=%s division=%d tempo=%dus/qn", args[0], format, src.Division(), src.Tempo())
	if d := src.DurationMicros(); d > 0 {
		fmt.Printf(" duration=%.2fs", float64(d)/1e6)
	}
	fmt.Println()
	if !src.IsValid() {
		fmt.Println("  (no playable events)")
		return nil
	}

	src.StartPlayback(false)
	buf := make([]uint32, maxStreamEvents*3)
	tick := uint64(0)
	for !src.CheckDone() {
		words := src.MakeEvents(buf, 1<<40)
		if len(words) == 0 {
			break
		}
		for _, ev := range DecodeStream(words) {
			tick += uint64(ev.Delta)
			switch ev.Type {
			case MEVENT_SHORTMSG:
				fmt.Printf("%10d  short %02X %02X %02X\n", tick, ev.Status, ev.Parm1, ev.Parm2)
			case MEVENT_TEMPO:
				fmt.Printf("%10d  tempo %d us/qn\n", tick, ev.Tempo)
			case MEVENT_NOP:
				fmt.Printf("%10d  nop\n", tick)
			case MEVENT_LONGMSG:
				fmt.Printf("%10d  sysex % X\n", tick, ev.Data)
			default:
				fmt.Printf("%10d  type %d\n", tick, ev.Type)
			}
		}
	}
	return nil
}

func runDevices(cmd *cobra.Command, args []string) error {
	for _, d := range GetMidiDevices() {
		avail := ""
		if !d.Available {
			avail = "  (unavailable)"
		}
		fmt.Printf("%-10s %-6s %s%s\n", d.ID, d.Kind, d.Name, avail)
	}
	return nil
}

func runBanks(cmd *cobra.Command, args []string) error {
	names := ADLBankNames()
	if len(names) == 0 {
		fmt.Println("no compiled-in banks (OPL3 backend not built)")
		return nil
	}
	for i, name := range names {
		fmt.Printf("%3d  %s\n", i, name)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger(logLevel, logJSON)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	player, err := buildPlayer(log)
	if err != nil {
		return err
	}
	defer player.Close()

	return StartControlServer(serveAddr, player, log)
}
