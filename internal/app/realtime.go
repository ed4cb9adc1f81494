package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/audioroute/internal/audiocore/engine"
	"github.com/tphakala/audioroute/internal/conf"
	"github.com/tphakala/audioroute/internal/control/terminal"
	hostmalgo "github.com/tphakala/audioroute/internal/host/malgo"
	"github.com/tphakala/audioroute/internal/logger"
	"github.com/tphakala/audioroute/internal/observability"
	"github.com/tphakala/audioroute/internal/sysinfo"
)

// Realtime runs the engine on the configured audio devices until ctx is
// done, the process receives SIGINT or SIGTERM, or the user quits from the
// terminal.
func Realtime(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("realtime")
	sysinfo.Detect().Log(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rememberDevices(settings, log); err != nil {
		log.Warn("failed to save selected devices", logger.Error(err))
	}

	cfg, err := EngineConfig(settings)
	if err != nil {
		return err
	}

	session := uuid.NewString()
	engineOpts := []engine.Option{engine.WithSession(session)}
	hostOpts := []hostmalgo.Option{}

	var endpoint *observability.Endpoint
	if settings.Telemetry.Enabled {
		m, err := observability.NewMetrics(session, settings.Audio.Backend)
		if err != nil {
			return err
		}
		engineOpts = append(engineOpts, engine.WithMetrics(m.Routing))
		hostOpts = append(hostOpts, hostmalgo.WithMetrics(m.Host))
		endpoint = observability.NewEndpoint(settings.Telemetry.Listen, m, settings.Telemetry.Debug)
	}

	e, err := engine.New(cfg, engineOpts...)
	if err != nil {
		return err
	}
	host, err := hostmalgo.New(HostConfig(settings), e, hostOpts...)
	if err != nil {
		return err
	}

	var surface *terminal.Surface
	switch {
	case settings.Control.Terminal && terminal.IsTerminal(os.Stdin):
		surface = terminal.New(e, os.Stdin, os.Stdout)
	case settings.Control.Terminal:
		log.Info("stdin is not a terminal, keyboard control disabled")
	}
	e.Subscribe(func(ev engine.Event) {
		log.Info("engine event", logger.String("event", ev.String()))
		if surface != nil {
			surface.Notify(ev)
		}
	})

	if conf.ConfigFileUsed() != "" {
		conf.Watch(reloadRouting(e, log))
	}

	log.Info("starting realtime routing",
		logger.String("session", session),
		logger.String("backend", settings.Audio.Backend),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("frames", cfg.Frames))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Dispatch(gctx) })
	g.Go(func() error { return host.Run(gctx) })
	if endpoint != nil {
		g.Go(func() error { return endpoint.Run(gctx) })
	}
	if surface != nil {
		g.Go(func() error { return runSurface(gctx, surface) })
	}

	err = g.Wait()
	if errors.Is(err, terminal.ErrQuit) {
		err = nil
	}
	log.Info("realtime routing stopped")
	return err
}

// runSurface runs the terminal in raw mode. ErrQuit is returned as is so
// that it cancels the other goroutines of the group.
func runSurface(ctx context.Context, s *terminal.Surface) error {
	restore, err := terminal.MakeRaw(os.Stdin)
	if err != nil {
		return err
	}
	defer restore()
	return s.Run(ctx)
}

// rememberDevices fills empty device names with the current default
// devices and saves them, so later runs keep the same devices even when the
// system default changes.
func rememberDevices(settings *conf.Settings, log logger.Logger) error {
	if settings.Audio.CaptureDevice != "" && settings.Audio.PlaybackDevice != "" {
		return nil
	}
	if conf.ConfigFileUsed() == "" {
		return nil
	}
	devices, err := hostmalgo.ListDevices(settings.Audio.Backend)
	if err != nil {
		return err
	}
	if !fillDefaults(&settings.Audio, devices) {
		return nil
	}
	log.Info("remembering default devices",
		logger.String("capture", settings.Audio.CaptureDevice),
		logger.String("playback", settings.Audio.PlaybackDevice))
	return conf.SaveSettings(settings)
}

// fillDefaults sets empty device names from the default devices in
// devices and reports whether anything changed.
func fillDefaults(audio *conf.AudioSettings, devices []hostmalgo.DeviceInfo) bool {
	changed := false
	for i := range devices {
		d := &devices[i]
		if !d.IsDefault {
			continue
		}
		switch {
		case d.Kind == hostmalgo.KindCapture && audio.CaptureDevice == "":
			audio.CaptureDevice = d.Name
			changed = true
		case d.Kind == hostmalgo.KindPlayback && audio.PlaybackDevice == "":
			audio.PlaybackDevice = d.Name
			changed = true
		}
	}
	return changed
}
