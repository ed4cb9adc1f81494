// Package engine drives the routing graph from the host audio callback.
//
// The engine owns a fixed set of nodes: the host input and output, a
// silence source, a recorder and a test processor. Three switches connect
// them. The record switch selects what the recorder captures; the test and
// output switches select what the test processor and the host output are
// fed, and fade between sources when crossfading is enabled.
//
// Control goroutines change the routing only through the atomic routing
// word (see package routing). The audio thread reads it once per block,
// rewires the switches when it changed, and pulls the host output. When a
// node reports that the recorder ran dry or filled up, the engine updates
// the routing word itself and fills the block again.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/audioroute/internal/audiocore/chunkalloc"
	"github.com/tphakala/audioroute/internal/audiocore/crossfade"
	"github.com/tphakala/audioroute/internal/audiocore/framering"
	"github.com/tphakala/audioroute/internal/audiocore/graph"
	"github.com/tphakala/audioroute/internal/audiocore/nodes"
	"github.com/tphakala/audioroute/internal/audiocore/processors"
	"github.com/tphakala/audioroute/internal/audiocore/routing"
	"github.com/tphakala/audioroute/internal/logger"
)

// Sample is a single mono audio sample.
type Sample = graph.Sample

// maxAttempts bounds the fills of one block. Every failed attempt changes
// the routing word, and no sequence of changes needs more than this.
const maxAttempts = 8

// Metrics receives engine measurements. Implementations are called from the
// audio thread and must not block or allocate.
type Metrics interface {
	ObserveCallback(d time.Duration)
	IncRetry()
	IncCondition(c graph.Condition)
	IncTopologyChange()
	IncCrossfadeSettled()
	SetRing(frames, capacity int)
	SetPool(s chunkalloc.Stats)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCallback(time.Duration)  {}
func (noopMetrics) IncRetry()                      {}
func (noopMetrics) IncCondition(graph.Condition)   {}
func (noopMetrics) IncTopologyChange()             {}
func (noopMetrics) IncCrossfadeSettled()           {}
func (noopMetrics) SetRing(int, int)               {}
func (noopMetrics) SetPool(chunkalloc.Stats)       {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. It is only used outside the audio thread.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics sets the metrics sink. A nil sink disables metrics.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSession sets the session identifier instead of generating one, so
// that metrics registered before the engine carry the same label.
func WithSession(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.session = id
		}
	}
}

// resizer is implemented by test processors with per-block scratch space.
type resizer interface {
	Resize(frames int) error
}

// Engine is the routing core. Process is called from the audio thread; the
// control methods may be called from any goroutine.
type Engine struct {
	cfg     Config
	session string
	log     logger.Logger
	metrics Metrics

	state *routing.State
	block graph.Block

	g        *graph.Graph
	hostIn   *nodes.HostInput
	hostOut  *nodes.HostOutput
	silence  *nodes.Silence
	recorder *nodes.Recorder
	test     *graph.Processor
	testProc resizer
	gain     *processors.Gain

	recordSw *crossfade.Switch
	testSw   *crossfade.Switch
	outputSw *crossfade.Switch

	applied routing.Word
	fresh   bool // applied holds a word the switches reflect

	events      atomic.Uint32
	wake        chan struct{}
	subMu       sync.Mutex
	subscribers []func(Event)
}

// New builds the node graph described by cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	state, err := routing.NewState(cfg.Initial)
	if err != nil {
		return nil, err
	}
	g, err := graph.New(cfg.Frames, cfg.Pool)
	if err != nil {
		return nil, err
	}
	ring, err := framering.NewForPeriod(cfg.RecordSeconds, cfg.SampleRate, cfg.Frames)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		session: uuid.NewString(),
		log:     logger.Global().Module("engine"),
		metrics: noopMetrics{},
		state:   state,
		g:       g,
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logger.String("session", e.session))

	e.hostIn = nodes.NewHostInput(g)
	e.hostOut = nodes.NewHostOutput(g)
	e.silence = nodes.NewSilence(g)
	e.recorder = nodes.NewRecorder(g, ring)

	if err := e.newTestProcessor(); err != nil {
		return nil, err
	}

	var testXF, outputXF *crossfade.Crossfader
	if cfg.Crossfade {
		d := crossfade.DurationForRate(cfg.SampleRate)
		testXF = crossfade.New(g, "test", d)
		outputXF = crossfade.New(g, "output", d)
	}
	e.recordSw = crossfade.NewSwitch(e.recorder.In, nil)
	e.testSw = crossfade.NewSwitch(e.test.In, testXF)
	e.outputSw = crossfade.NewSwitch(e.hostOut.In, outputXF)

	e.log.Info("engine created",
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("frames", cfg.Frames),
		logger.Int("ring_slots", ring.Slots()),
		logger.String("test", cfg.Test),
		logger.Bool("crossfade", cfg.Crossfade),
		logger.String("routing", state.Load().String()))
	return e, nil
}

func (e *Engine) newTestProcessor() error {
	var t graph.Transform
	switch e.cfg.Test {
	case TestFFT:
		fft, err := processors.NewFFTMagnitude(e.cfg.Frames)
		if err != nil {
			return err
		}
		t, e.testProc = fft, fft
	case TestGain:
		e.gain = processors.NewGain(e.cfg.Frames, processors.DecibelsToGain(e.cfg.GainDB))
		t = e.gain
		e.testProc = resizeFunc(func(frames int) error {
			e.gain.Resize(frames)
			return nil
		})
	default:
		e.test = nodes.NewCopy(e.g, "test")
		return nil
	}
	e.test = e.g.NewProcessor("test", t)
	return nil
}

type resizeFunc func(frames int) error

func (f resizeFunc) Resize(frames int) error { return f(frames) }

// Session returns the identifier attached to this engine's logs and metrics.
func (e *Engine) Session() string { return e.session }

// Frames returns the block size.
func (e *Engine) Frames() int { return e.g.Frames() }

// SampleRate returns the configured sample rate.
func (e *Engine) SampleRate() int { return e.cfg.SampleRate }

// State returns the current routing word.
func (e *Engine) State() routing.Word { return e.state.Load() }

// SetMode selects the playback mode.
func (e *Engine) SetMode(m routing.Mode) error {
	if err := e.state.SetMode(m); err != nil {
		return err
	}
	e.log.Info("mode changed", logger.String("mode", m.String()))
	return nil
}

// SetRecord selects the record source: 0, routing.RecordInput or
// routing.RecordOutput.
func (e *Engine) SetRecord(mode routing.Word) error {
	if err := e.state.SetRecord(mode); err != nil {
		return err
	}
	e.log.Info("record changed", logger.String("record", routing.RecordName(mode)))
	return nil
}

// SetRepeat sets whether playback rewinds instead of stopping when the
// recording runs out.
func (e *Engine) SetRepeat(on bool) { e.state.SetRepeat(on) }

// SetToInput sets whether playback feeds the test processor.
func (e *Engine) SetToInput(on bool) { e.state.SetToInput(on) }

// ClearBuffer asks the audio thread to discard the recording.
func (e *Engine) ClearBuffer() {
	_ = e.state.Command(routing.ClearBuffer)
}

// Rewind asks the audio thread to restart playback from the oldest frame.
func (e *Engine) Rewind() {
	_ = e.state.Command(routing.PlaybackReset)
}

// SetGain changes the test gain in dB. It has no effect unless the test
// processor is TestGain. Audio thread, or while it is stopped.
func (e *Engine) SetGain(db float64) {
	if e.gain != nil {
		e.gain.SetGain(processors.DecibelsToGain(db))
	}
}

// Stats is a snapshot of engine internals.
type Stats struct {
	Session    string
	Routing    routing.Word
	Frames     int
	SampleRate int
	RingLen    int
	RingSlots  int
	Pool       chunkalloc.Stats
}

// Stats returns a snapshot. The pool figures are only coherent when taken
// on the audio thread or while it is stopped.
func (e *Engine) Stats() Stats {
	ring := e.recorder.Ring()
	return Stats{
		Session:    e.session,
		Routing:    e.state.Load(),
		Frames:     e.g.Frames(),
		SampleRate: e.cfg.SampleRate,
		RingLen:    ring.Len(),
		RingSlots:  ring.Slots(),
		Pool:       e.g.PoolStats(),
	}
}
