package engine

import (
	"time"

	"github.com/tphakala/audioroute/internal/audiocore/crossfade"
	"github.com/tphakala/audioroute/internal/audiocore/framering"
	"github.com/tphakala/audioroute/internal/audiocore/graph"
	"github.com/tphakala/audioroute/internal/audiocore/routing"
	"github.com/tphakala/audioroute/internal/logger"
)

// Process renders one block: in holds the captured frames and out receives
// the frames to play. Both must hold exactly Frames() samples. Process runs
// on the audio thread and does not allocate.
func (e *Engine) Process(in, out []Sample) error {
	frames := e.g.Frames()
	if len(in) != frames || len(out) != frames {
		return ErrFrameMismatch
	}
	start := time.Now()

	e.hostIn.Bind(in)
	e.hostOut.Bind(out)
	e.block.Begin()

	rewound := false
	for attempt := 1; ; attempt++ {
		if attempt > maxAttempts {
			panic(fatal("block could not be filled", map[string]any{
				"attempts": maxAttempts,
				"state":    e.state.Load().String(),
			}))
		}

		e.settle()
		cmds := e.state.TakeCommands()
		if cmds&routing.ClearBuffer != 0 {
			e.recorder.Clear()
		}
		if cmds&routing.PlaybackReset != 0 {
			e.recorder.ResetReadPointer()
			rewound = true
		}
		if w := e.state.Load() &^ routing.CommandsMask; !e.fresh || w != e.applied {
			e.apply(w)
		}

		err := e.fill()
		cond := graph.ConditionOf(err) | e.block.Raised()
		if err != nil && cond == 0 {
			return err
		}
		if cond == 0 {
			break
		}

		e.metrics.IncCondition(cond)
		e.handle(cond, rewound)
		if err == nil {
			break
		}
		// Retrying the same topology would fail the same way.
		if w := e.state.Load(); w == e.applied {
			panic(fatal("failed fill left routing unchanged", map[string]any{
				"condition": cond.String(),
				"state":     w.String(),
			}))
		}
		e.metrics.IncRetry()
	}

	ring := e.recorder.Ring()
	e.metrics.SetRing(ring.Len(), ring.Slots()-1)
	e.metrics.SetPool(e.g.PoolStats())
	e.metrics.ObserveCallback(time.Since(start))
	return nil
}

// fill pulls the recorder when it is connected and then the host output.
func (e *Engine) fill() error {
	if e.recorder.In.Connected() != nil {
		if err := e.recorder.In.Fill(&e.block); err != nil {
			return err
		}
	}
	return e.hostOut.In.Fill(&e.block)
}

// handle reacts to recorder conditions by changing the routing word.
func (e *Engine) handle(cond graph.Condition, rewound bool) {
	w := e.state.Load()
	if cond&graph.ConditionEmpty != 0 && w.Playing() {
		switch {
		case w.Repeat() && !rewound:
			_ = e.state.Command(routing.PlaybackReset)
		case w.ToInput():
			_ = e.state.SetPlayback(routing.Direct)
			e.notify(EventPlaybackStopped)
		default:
			_ = e.state.SetPlayback(routing.Muted)
			e.notify(EventPlaybackStopped)
		}
	}
	if cond&graph.ConditionFull != 0 && w.Recording() {
		_ = e.state.SetRecord(0)
		e.notify(EventRecordingStopped)
	}
}

// settle collapses finished fades. Once the output fade is gone and the
// current word has been applied, the previous mode is cleared so the test
// path stops following it.
func (e *Engine) settle() {
	if e.outputSw.Settle() {
		e.metrics.IncCrossfadeSettled()
		e.notify(EventCrossfadeSettled)
	}
	e.testSw.Settle()

	if e.fresh && !e.outputSw.Crossfading() {
		if w := e.state.Load(); !w.Settled() && w&^routing.CommandsMask == e.applied {
			e.state.ClearPrev()
		}
	}
}

// apply points the switches at the sources selected by w.
func (e *Engine) apply(w routing.Word) {
	sel := routing.Lookup(w)

	switch sel.Output {
	case routing.OutputSilence:
		e.outputSw.Connect(e.silence.Out)
	case routing.OutputPlayback:
		e.outputSw.Connect(e.recorder.Out)
	case routing.OutputTest:
		e.outputSw.Connect(e.test.Out)
	case routing.OutputPassthrough:
		e.outputSw.Connect(e.hostIn.Out)
	}

	if e.outputSw.Crossfading() {
		sel = routing.LookupFading(w)
	}
	switch sel.Test {
	case routing.TestBypassed:
		e.testSw.Connect(nil)
	case routing.TestFromInput:
		e.testSw.Connect(e.hostIn.Out)
	case routing.TestFromPlayback:
		e.testSw.Connect(e.recorder.Out)
	}

	switch sel.Record {
	case routing.RecordNone:
		e.recordSw.Connect(nil)
	case routing.RecordFromInput:
		e.recordSw.Connect(e.hostIn.Out)
	case routing.RecordFromOutput:
		e.recordSw.Connect(e.test.Out)
	}

	e.recorder.SetRepeat(w.Repeat())
	e.applied, e.fresh = w, true
	e.metrics.IncTopologyChange()
}

// resetSwitches abandons running fades.
func (e *Engine) resetSwitches() {
	e.outputSw.Reset()
	e.testSw.Reset()
	e.fresh = false
}

// BufferSizeChanged resizes every block buffer. The recording is lost. It
// must not run concurrently with Process.
func (e *Engine) BufferSizeChanged(frames int) error {
	if frames <= 0 {
		return configError("frames", frames)
	}
	e.resetSwitches()
	if err := e.g.Resize(frames); err != nil {
		return err
	}
	e.silence.Resize(frames)
	if err := e.recorder.Ring().Resize(frames); err != nil {
		return err
	}
	if e.testProc != nil {
		if err := e.testProc.Resize(frames); err != nil {
			return err
		}
	}
	e.cfg.Frames = frames
	e.log.Info("buffer size changed", logger.Int("frames", frames))
	return nil
}

// SampleRateChanged adapts fade lengths and the recorder capacity to a new
// sample rate. The recording is lost. It must not run concurrently with
// Process.
func (e *Engine) SampleRateChanged(rate int) error {
	if rate <= 0 {
		return configError("sample rate", rate)
	}
	e.resetSwitches()
	d := crossfade.DurationForRate(rate)
	for _, sw := range []*crossfade.Switch{e.testSw, e.outputSw} {
		if xf := sw.Crossfader(); xf != nil {
			xf.SetDuration(d)
		}
	}
	frames := e.g.Frames()
	ring := e.recorder.Ring()
	if err := ring.Reshape(framering.SlotsForPeriod(e.cfg.RecordSeconds, rate, frames), frames); err != nil {
		return err
	}
	e.cfg.SampleRate = rate
	e.log.Info("sample rate changed",
		logger.Int("sample_rate", rate),
		logger.Int("ring_slots", ring.Slots()))
	return nil
}
