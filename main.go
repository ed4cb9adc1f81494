package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tphakala/audioroute/cmd"
	"github.com/tphakala/audioroute/internal/buildinfo"
	"github.com/tphakala/audioroute/internal/conf"
	"github.com/tphakala/audioroute/internal/errors"
	"github.com/tphakala/audioroute/internal/logger"
)

// Set with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	info := &buildinfo.Context{Version: version, BuildDate: buildDate}

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return 1
	}

	logCfg := settings.Logging
	if settings.Debug {
		logCfg.DefaultLevel = "debug"
	}
	central, err := logger.NewCentralLogger(&logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		return 1
	}
	logger.SetGlobal(central)
	defer func() { _ = central.Close() }()

	log := central.Module("main")
	if settings.Telemetry.Sentry.Enabled {
		reporter, err := errors.InitSentry(settings.Telemetry.Sentry.DSN, info.Release())
		if err != nil {
			log.Warn("sentry disabled", logger.Error(err))
		} else {
			errors.SetTelemetryReporter(reporter)
			defer errors.FlushTelemetry(2 * time.Second)
		}
	}

	log.Info("audioroute starting",
		logger.String("version", info.GetVersion()),
		logger.String("build_date", info.GetBuildDate()),
		logger.String("config", conf.ConfigFileUsed()))

	root := cmd.RootCommand(settings, info)
	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Error("command failed", logger.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
