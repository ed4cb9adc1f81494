// Package malgo runs the routing engine on a sound card through miniaudio.
//
// The host opens either one duplex device or, with split devices, a
// capture and a playback device whose clocks are bridged by a byte ring.
// Device callbacks of any length are cut into engine blocks.
package malgo

import (
	"context"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/audioroute/internal/errors"
	"github.com/tphakala/audioroute/internal/logger"
	"github.com/tphakala/audioroute/internal/observability/metrics"
)

// ComponentHost identifies host errors
const ComponentHost = "host.malgo"

// restartDelay is the pause before restarting a device that stopped on
// its own.
const restartDelay = 100 * time.Millisecond

// Processor renders audio blocks. *engine.Engine implements it.
type Processor interface {
	Process(in, out []float32) error
	Frames() int
	SampleRate() int
	SampleRateChanged(rate int) error
}

// Config selects the devices and stream format.
type Config struct {
	Backend        string
	CaptureDevice  string
	PlaybackDevice string
	SampleRate     int
	BufferFrames   int
	SplitDevices   bool
	JitterBlocks   int
}

// Host drives a Processor from audio device callbacks.
type Host struct {
	cfg     Config
	proc    Processor
	log     logger.Logger
	metrics *metrics.HostMetrics

	block   *blocker
	jitter  *ringbuffer.RingBuffer
	scratch []byte

	failed  chan error
	stopped chan struct{}
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Host) { h.log = l }
}

// WithMetrics sets the host metrics. A nil value disables them.
func WithMetrics(m *metrics.HostMetrics) Option {
	return func(h *Host) { h.metrics = m }
}

// New creates a host for proc. Devices are opened by Run.
func New(cfg Config, proc Processor, opts ...Option) (*Host, error) {
	if _, err := backends(cfg.Backend); err != nil {
		return nil, err
	}
	if cfg.SplitDevices && cfg.JitterBlocks < 2 {
		return nil, errors.Newf("split devices need at least 2 jitter blocks, got %d", cfg.JitterBlocks).
			Component(ComponentHost).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = proc.SampleRate()
	}
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = proc.Frames()
	}

	h := &Host{
		cfg:     cfg,
		proc:    proc,
		log:     logger.Global().Module("host"),
		failed:  make(chan error, 1),
		stopped: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.String("backend", cfg.Backend))
	h.block = newBlocker(proc.Frames(), proc.Process)
	if cfg.SplitDevices {
		h.jitter = ringbuffer.New(cfg.JitterBlocks * cfg.BufferFrames * bytesPerSample)
		h.scratch = make([]byte, cfg.BufferFrames*bytesPerSample)
	}
	return h, nil
}

// Run opens and starts the devices and renders audio until ctx is done
// or the engine fails.
func (h *Host) Run(ctx context.Context) error {
	list, err := backends(h.cfg.Backend)
	if err != nil {
		return err
	}
	mctx, err := malgo.InitContext(list, malgo.ContextConfig{}, func(message string) {
		h.log.Debug("miniaudio", logger.String("message", message))
	})
	if err != nil {
		h.metrics.RecordError("init_context")
		return errors.New(err).
			Component(ComponentHost).
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Context("backend", h.cfg.Backend).
			Build()
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	devices, err := h.openDevices(mctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, d := range devices {
			_ = d.Stop()
			d.Uninit()
		}
	}()

	if rate := int(devices[0].SampleRate()); rate != h.proc.SampleRate() {
		h.log.Warn("device sample rate differs from engine",
			logger.Int("device_rate", rate),
			logger.Int("engine_rate", h.proc.SampleRate()))
		if err := h.proc.SampleRateChanged(rate); err != nil {
			return err
		}
	}

	for _, d := range devices {
		err := d.Start()
		h.metrics.RecordDeviceStart(err)
		if err != nil {
			return errors.New(err).
				Component(ComponentHost).
				Category(errors.CategoryAudioSource).
				Context("operation", "start_device").
				Build()
		}
	}
	h.log.Info("audio host started",
		logger.Bool("split_devices", h.cfg.SplitDevices),
		logger.Int("sample_rate", h.proc.SampleRate()),
		logger.Int("frames", h.proc.Frames()))

	for {
		select {
		case <-ctx.Done():
			h.log.Info("audio host stopping")
			return nil
		case err := <-h.failed:
			h.metrics.RecordError("process")
			h.log.Error("engine failed", logger.Error(err))
			return err
		case <-h.stopped:
			if err := h.restart(ctx, devices); err != nil {
				return err
			}
		}
	}
}

// restart starts devices that stopped without being asked to.
func (h *Host) restart(ctx context.Context, devices []*malgo.Device) error {
	select {
	case <-ctx.Done():
		return nil
	case <-time.After(restartDelay):
	}
	for _, d := range devices {
		if d.IsStarted() {
			continue
		}
		h.log.Warn("audio device stopped, restarting")
		err := d.Start()
		h.metrics.RecordDeviceStart(err)
		if err != nil {
			h.metrics.RecordError("restart")
			return errors.New(err).
				Component(ComponentHost).
				Category(errors.CategoryAudioSource).
				Context("operation", "restart_device").
				Build()
		}
	}
	return nil
}

func (h *Host) openDevices(mctx *malgo.AllocatedContext) ([]*malgo.Device, error) {
	if !h.cfg.SplitDevices {
		cfg := h.deviceConfig(malgo.Duplex)
		if err := h.selectDevice(mctx, &cfg, KindCapture, h.cfg.CaptureDevice); err != nil {
			return nil, err
		}
		if err := h.selectDevice(mctx, &cfg, KindPlayback, h.cfg.PlaybackDevice); err != nil {
			return nil, err
		}
		d, err := h.initDevice(mctx, cfg, h.onDuplex, "duplex")
		if err != nil {
			return nil, err
		}
		return []*malgo.Device{d}, nil
	}

	pcfg := h.deviceConfig(malgo.Playback)
	if err := h.selectDevice(mctx, &pcfg, KindPlayback, h.cfg.PlaybackDevice); err != nil {
		return nil, err
	}
	playback, err := h.initDevice(mctx, pcfg, h.onPlayback, "playback")
	if err != nil {
		return nil, err
	}
	ccfg := h.deviceConfig(malgo.Capture)
	if err := h.selectDevice(mctx, &ccfg, KindCapture, h.cfg.CaptureDevice); err != nil {
		playback.Uninit()
		return nil, err
	}
	capture, err := h.initDevice(mctx, ccfg, h.onCapture, "capture")
	if err != nil {
		playback.Uninit()
		return nil, err
	}
	// Playback first so its rate is the one the engine follows.
	return []*malgo.Device{playback, capture}, nil
}

func (h *Host) deviceConfig(kind malgo.DeviceType) malgo.DeviceConfig {
	cfg := malgo.DefaultDeviceConfig(kind)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(h.proc.SampleRate())
	cfg.PeriodSizeInFrames = uint32(h.cfg.BufferFrames)
	cfg.Alsa.NoMMap = 1
	return cfg
}

func (h *Host) selectDevice(mctx *malgo.AllocatedContext, cfg *malgo.DeviceConfig, kind DeviceKind, name string) error {
	info, err := findDevice(mctx, kind, name)
	if err != nil {
		return err
	}
	if info == nil {
		h.log.Info("using default device", logger.String("kind", string(kind)))
		return nil
	}
	h.log.Info("using device",
		logger.String("kind", string(kind)),
		logger.String("name", info.Name()))
	if kind == KindPlayback {
		cfg.Playback.DeviceID = info.ID.Pointer()
	} else {
		cfg.Capture.DeviceID = info.ID.Pointer()
	}
	return nil
}

func (h *Host) initDevice(mctx *malgo.AllocatedContext, cfg malgo.DeviceConfig, data malgo.DataProc, role string) (*malgo.Device, error) {
	d, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: data,
		Stop: h.onStop,
	})
	if err != nil {
		h.metrics.RecordError("init_device")
		return nil, errors.New(err).
			Component(ComponentHost).
			Category(errors.CategoryAudioSource).
			Context("operation", "init_device").
			Context("role", role).
			Build()
	}
	return d, nil
}

// onDuplex renders captured frames straight to the playback buffer.
func (h *Host) onDuplex(out, in []byte, frameCount uint32) {
	h.metrics.IncCallback()
	h.report(h.block.process(out, in, int(frameCount)))
}

// onCapture queues captured frames for the playback callback.
func (h *Host) onCapture(_, in []byte, frameCount uint32) {
	n := int(frameCount) * bytesPerSample
	if h.jitter.Free() < n {
		h.metrics.IncOverrun()
		return
	}
	_, _ = h.jitter.Write(in[:n])
}

// onPlayback pulls queued capture frames and renders them. Missing frames
// are rendered as silence.
func (h *Host) onPlayback(out, _ []byte, frameCount uint32) {
	h.metrics.IncCallback()
	n := int(frameCount) * bytesPerSample
	// Larger than the configured period; render it in pieces.
	for off := 0; off < n; off += len(h.scratch) {
		end := min(off+len(h.scratch), n)
		h.playbackPiece(out[off:end])
	}
}

func (h *Host) playbackPiece(out []byte) {
	buf := h.scratch[:len(out)]
	n := len(out)
	got, _ := h.jitter.Read(buf)
	if got < n {
		h.metrics.IncUnderrun()
		clear(buf[got:])
	}
	h.report(h.block.process(out, buf, n/bytesPerSample))
}

func (h *Host) onStop() {
	select {
	case h.stopped <- struct{}{}:
	default:
	}
}

func (h *Host) report(err error) {
	if err == nil {
		return
	}
	select {
	case h.failed <- err:
	default:
	}
}
