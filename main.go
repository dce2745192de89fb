package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/performer/internal/engine"
	"github.com/schollz/performer/internal/midiconnector"
	"github.com/schollz/performer/internal/model"
	"github.com/schollz/performer/internal/output"
	"github.com/schollz/performer/internal/recorder"
	"github.com/schollz/performer/internal/render"
	"github.com/schollz/performer/internal/storage"
	"github.com/schollz/performer/internal/types"
	"github.com/schollz/performer/internal/views"
)

var (
	flagProjectFile  string
	flagSettingsFile string
	flagDebugLog     string
	flagOscHost      string
	flagOscPort      int
	flagMidiDevice   string
	flagMidiInput    string
	flagBPM          float32
	flagRecord       bool
	flagRecordMode   string
	flagRecordTrack  int
)

func main() {
	root := &cobra.Command{
		Use:   "performer",
		Short: "Multi-track gate/CV step sequencer engine",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	root.PersistentFlags().StringVar(&flagProjectFile, "project-file", "", "project file to load (.bin or .json.gz)")
	root.PersistentFlags().StringVar(&flagSettingsFile, "settings-file", "", "settings file with the calibration table")
	root.PersistentFlags().StringVar(&flagDebugLog, "debug", "", "if set, write debug logs to this file; empty disables logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine against OSC and MIDI outputs",
		RunE:  runEngine,
	}
	runCmd.Flags().StringVar(&flagOscHost, "osc-host", "localhost", "OSC host for gate/cv messages")
	runCmd.Flags().IntVar(&flagOscPort, "osc-port", 57120, "OSC port for gate/cv messages")
	runCmd.Flags().StringVar(&flagMidiDevice, "midi-device", "", "MIDI output device for the mirror (optional)")
	runCmd.Flags().StringVar(&flagMidiInput, "midi-input", "", "MIDI input device for MIDI/CV tracks and recording (optional)")
	runCmd.Flags().Float32Var(&flagBPM, "bpm", 0, "override the project BPM")
	runCmd.Flags().BoolVar(&flagRecord, "record", false, "arm live recording on the record track")
	runCmd.Flags().StringVar(&flagRecordMode, "record-mode", "overwrite", "record mode: overwrite, punch or step")
	runCmd.Flags().IntVar(&flagRecordTrack, "record-track", 0, "track to record onto")

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the engine with a terminal monitor",
		RunE:  runMonitor,
	}
	monitorCmd.Flags().StringVar(&flagOscHost, "osc-host", "localhost", "OSC host for gate/cv messages")
	monitorCmd.Flags().IntVar(&flagOscPort, "osc-port", 57120, "OSC port for gate/cv messages")
	monitorCmd.Flags().Float32Var(&flagBPM, "bpm", 0, "override the project BPM")

	renderCmd := &cobra.Command{
		Use:   "render [output.wav]",
		Short: "Render a track's CV output to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRender,
	}
	renderCmd.Flags().Int("track", 0, "track to render")
	renderCmd.Flags().Int("measures", 4, "measures to render")
	renderCmd.Flags().Int("sample-rate", 44100, "sample rate")

	root.AddCommand(runCmd, monitorCmd, renderCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	if flagDebugLog != "" {
		f, err := os.OpenFile(flagDebugLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Printf("Fatal: %v", err)
			os.Exit(1)
		}
		log.SetOutput(f)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("Debug logging enabled")
	} else {
		log.SetOutput(io.Discard)
	}
}

func loadProject() *model.Project {
	if flagProjectFile == "" {
		log.Printf("no project file given; starting with an empty project")
		return model.NewProject()
	}

	if p, err := storage.LoadProjectFile(flagProjectFile); err == nil {
		log.Printf("loaded binary project from %s", flagProjectFile)
		return p
	}
	if p, err := storage.LoadSnapshot(flagProjectFile); err == nil {
		log.Printf("loaded project snapshot from %s", flagProjectFile)
		return p
	}

	log.Printf("could not load %s; starting with an empty project", flagProjectFile)
	return model.NewProject()
}

func loadSettings() *storage.Settings {
	if flagSettingsFile == "" {
		return storage.NewSettings()
	}
	s, err := storage.LoadSettingsFile(flagSettingsFile)
	if err != nil {
		log.Printf("could not load settings from %s: %v", flagSettingsFile, err)
		return storage.NewSettings()
	}
	return s
}

func buildSink(settings *storage.Settings) engine.OutputSink {
	sinks := output.Broadcast{output.NewOscSink(flagOscHost, flagOscPort, settings)}

	if flagMidiDevice != "" {
		dev, err := midiconnector.New(flagMidiDevice)
		if err != nil {
			log.Printf("MIDI device not found: %v", err)
		} else if err := dev.Open(); err != nil {
			log.Printf("could not open MIDI device: %v", err)
		} else {
			sinks = append(sinks, output.NewMidiSink(dev))
		}
	}
	return sinks
}

func runEngine(cmd *cobra.Command, args []string) error {
	p := loadProject()
	if flagBPM > 0 {
		p.SetBPM(flagBPM)
	}
	settings := loadSettings()

	eng := engine.New(p, buildSink(settings))

	history := &recorder.History{}
	recording := newRecordSession(eng, history)
	if flagRecord {
		recording.Arm(flagRecordTrack, parseRecordMode(flagRecordMode))
	}

	var stopInput func()
	if flagMidiInput != "" {
		var err error
		stopInput, err = midiconnector.Listen(flagMidiInput, func(msg midi.Message) {
			dispatchMidi(eng, history, recording.cvHistory, msg)
		})
		if err != nil {
			log.Printf("MIDI input unavailable: %v", err)
		}
	}
	if stopInput != nil {
		defer stopInput()
	}
	defer midiconnector.Close()

	eng.Start()
	log.Printf("engine running at %.1f bpm", p.BPM)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	tickPeriod := tickDuration(p.BPM)
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	var tick uint32
	lastUpdate := time.Now()
	for {
		select {
		case <-c:
			recording.Disarm()
			eng.Stop()
			return nil
		case now := <-ticker.C:
			eng.Tick(tick)
			if recording.Tick(tick) {
				storage.AutoSave(p, autoSavePath())
			}
			updateMonitorNotes(eng, recording.noteRec)
			tick++
			eng.Update(float32(now.Sub(lastUpdate).Seconds()))
			lastUpdate = now
		}
	}
}

// dispatchMidi fans incoming MIDI to every MIDI/CV track and the record
// rings. Runs on the driver callback; only enqueues.
func dispatchMidi(eng *engine.Engine, history *recorder.History, cvHistory *recorder.CvHistory, msg midi.Message) {
	for i := 0; i < types.TrackCount; i++ {
		if mce, ok := eng.Track(i).(*engine.MidiCvTrackEngine); ok {
			mce.ReceiveMidi(msg)
		}
	}

	var ch, key, vel, controller, value uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		history.Push(recorder.Event{Tick: eng.TickCount(), Note: int(key), Velocity: int(vel), On: true})
	case msg.GetNoteEnd(&ch, &key):
		history.Push(recorder.Event{Tick: eng.TickCount(), Note: int(key), On: false})
	case msg.GetControlChange(&ch, &controller, &value):
		// CC 2 doubles as sampled CV input for curve recording
		if controller == cvInputController {
			cvHistory.Push(recorder.CvEvent{Tick: eng.TickCount(), Volts: float32(value) / 127.0 * 5.0})
		}
	}
}

func parseRecordMode(s string) types.RecordMode {
	switch strings.ToLower(s) {
	case "punch":
		return types.RecordModePunch
	case "step":
		return types.RecordModeStepRecord
	default:
		return types.RecordModeOverwrite
	}
}

// autoSavePath picks the snapshot file live-record mutations autosave to.
func autoSavePath() string {
	if flagProjectFile == "" {
		return "performer-save.json.gz"
	}
	if strings.HasSuffix(flagProjectFile, ".json.gz") {
		return flagProjectFile
	}
	return strings.TrimSuffix(flagProjectFile, filepath.Ext(flagProjectFile)) + ".json.gz"
}

// updateMonitorNotes routes the newest held note to stopped note tracks.
func updateMonitorNotes(eng *engine.Engine, r *recorder.NoteRecorder) {
	if eng.Running() {
		return
	}
	note, held := r.LatestHeldNote()
	for i := 0; i < types.TrackCount; i++ {
		nte, ok := eng.Track(i).(*engine.NoteTrackEngine)
		if !ok {
			continue
		}
		if held {
			nte.MonitorNoteOn(note)
		} else {
			nte.MonitorNoteOff(note)
		}
	}
}

func tickDuration(bpm float32) time.Duration {
	if bpm <= 0 {
		bpm = 120
	}
	return time.Duration(float64(time.Minute) / float64(bpm) / types.MasterPPQN)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	p := loadProject()
	if flagBPM > 0 {
		p.SetBPM(flagBPM)
	}
	settings := loadSettings()

	eng := engine.New(p, buildSink(settings))

	// engine clock runs beside the TUI
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(tickDuration(p.BPM))
		defer ticker.Stop()
		var tick uint32
		lastUpdate := time.Now()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				eng.Tick(tick)
				tick++
				eng.Update(float32(now.Sub(lastUpdate).Seconds()))
				lastUpdate = now
			}
		}
	}()
	defer close(done)
	defer midiconnector.Close()

	prog := tea.NewProgram(views.NewMonitorModel(eng), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("monitor failed: %w", err)
	}
	eng.Stop()
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	p := loadProject()
	track, _ := cmd.Flags().GetInt("track")
	measures, _ := cmd.Flags().GetInt("measures")
	sampleRate, _ := cmd.Flags().GetInt("sample-rate")

	opts := render.Options{Track: track, Measures: measures, SampleRate: sampleRate}
	if err := render.RenderCvToWav(p, args[0], opts); err != nil {
		return err
	}
	fmt.Printf("rendered track %d to %s\n", track, args[0])
	return nil
}
