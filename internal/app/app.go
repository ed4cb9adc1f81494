// Package app wires configuration, the routing engine and its hosts into
// the realtime and offline render commands.
package app

import (
	"github.com/tphakala/audioroute/internal/audiocore/chunkalloc"
	"github.com/tphakala/audioroute/internal/audiocore/engine"
	"github.com/tphakala/audioroute/internal/audiocore/routing"
	"github.com/tphakala/audioroute/internal/conf"
	"github.com/tphakala/audioroute/internal/errors"
	hostmalgo "github.com/tphakala/audioroute/internal/host/malgo"
	"github.com/tphakala/audioroute/internal/logger"
)

// ComponentApp tags errors raised while wiring the application.
const ComponentApp = "app"

// EngineConfig maps settings onto an engine configuration.
func EngineConfig(settings *conf.Settings) (engine.Config, error) {
	initial, err := settings.Routing.Word()
	if err != nil {
		return engine.Config{}, errors.New(err).
			Component(ComponentApp).
			Category(errors.CategoryConfiguration).
			Context("mode", settings.Routing.Mode).
			Context("record", settings.Routing.Record).
			Build()
	}

	return engine.Config{
		SampleRate:    settings.Audio.SampleRate,
		Frames:        settings.Audio.BufferFrames,
		RecordSeconds: settings.Engine.RecordSeconds,
		Pool: chunkalloc.Config{
			InitialChunks:   settings.Engine.Pool.InitialChunks,
			IncrementChunks: settings.Engine.Pool.IncrementChunks,
			MaxBlocks:       settings.Engine.Pool.MaxBlocks,
		},
		Test:      settings.Engine.TestProcessor,
		GainDB:    settings.Engine.GainDB,
		Crossfade: settings.Engine.Crossfade,
		Initial:   initial,
	}, nil
}

// HostConfig maps settings onto a device host configuration.
func HostConfig(settings *conf.Settings) hostmalgo.Config {
	return hostmalgo.Config{
		Backend:        settings.Audio.Backend,
		CaptureDevice:  settings.Audio.CaptureDevice,
		PlaybackDevice: settings.Audio.PlaybackDevice,
		SampleRate:     settings.Audio.SampleRate,
		BufferFrames:   settings.Audio.BufferFrames,
		SplitDevices:   settings.Audio.SplitDevices,
		JitterBlocks:   settings.Audio.JitterBlocks,
	}
}

// RoutingController is the part of the engine a config reload touches.
type RoutingController interface {
	SetMode(m routing.Mode) error
	SetRecord(mode routing.Word) error
	SetRepeat(on bool)
}

// ApplyRouting pushes the fields that differ between old and updated to
// ctl. A nil old applies every field.
func ApplyRouting(ctl RoutingController, old, updated *conf.RoutingSettings) error {
	if updated == nil {
		return nil
	}
	first := old == nil

	if first || old.Mode != updated.Mode {
		m, err := routing.ParseMode(updated.Mode)
		if err != nil {
			return err
		}
		if err := ctl.SetMode(m); err != nil {
			return err
		}
	}
	if first || old.Record != updated.Record {
		w, err := routing.ParseRecord(updated.Record)
		if err != nil {
			return err
		}
		if err := ctl.SetRecord(w); err != nil {
			return err
		}
	}
	if first || old.Repeat != updated.Repeat {
		ctl.SetRepeat(updated.Repeat)
	}
	return nil
}

// reloadRouting returns a conf.ChangeFunc that applies routing changes.
func reloadRouting(ctl RoutingController, log logger.Logger) conf.ChangeFunc {
	return func(old, updated *conf.Settings) {
		var prev *conf.RoutingSettings
		if old != nil {
			prev = &old.Routing
		}
		if err := ApplyRouting(ctl, prev, &updated.Routing); err != nil {
			log.Warn("routing reload rejected", logger.Error(err))
			return
		}
		if prev != nil && (old.Audio != updated.Audio || old.Engine != updated.Engine) {
			log.Info("audio and engine settings take effect after restart")
		}
	}
}
