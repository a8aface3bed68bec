package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/rogd/cmd"
	"github.com/smazurov/rogd/internal/api"
	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/config"
	"github.com/smazurov/rogd/internal/ctrl"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/laptop"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/smazurov/rogd/internal/metrics"
	"github.com/smazurov/rogd/internal/nats"
	"github.com/smazurov/rogd/internal/store"
	"github.com/smazurov/rogd/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to settings file" short:"c" default:"/etc/rogd/rogd.toml"`

	// Server settings
	Listen string `help:"Address the API listens on" short:"l" default:"127.0.0.1:1338" toml:"server.listen" env:"SERVER_LISTEN"`

	// State document settings
	StatePath    string `help:"Hardware state document" default:"/etc/asusd/asusd.toml" toml:"state.path" env:"STATE_PATH"`
	StateRecover bool   `help:"Move a corrupt state document aside and start from defaults" default:"true" toml:"state.recover" env:"STATE_RECOVER"`

	// Hardware detection settings
	SupportTable string `help:"LED support table" default:"/etc/asusd/asusd-ledmodes.toml" toml:"hardware.support_table" env:"HARDWARE_SUPPORT_TABLE"`
	DMIRoot      string `name:"dmi-root" help:"DMI sysfs directory" default:"/sys/class/dmi/id" toml:"hardware.dmi_root" env:"HARDWARE_DMI_ROOT"`

	// NATS settings
	NatsEnabled bool   `help:"Serve commands and notifications over embedded NATS" default:"true" toml:"nats.enabled" env:"NATS_ENABLED"`
	NatsHost    string `help:"Embedded NATS listen host" default:"127.0.0.1" toml:"nats.host" env:"NATS_HOST"`
	NatsPort    int    `help:"Embedded NATS listen port" default:"4222" toml:"nats.port" env:"NATS_PORT"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingKbdLED string `name:"logging-kbdled" help:"Keyboard LED logging level" default:"info" toml:"logging.kbdled" env:"LOGGING_KBDLED"`
	LoggingAnime  string `help:"AniMe matrix logging level" default:"info" toml:"logging.anime" env:"LOGGING_ANIME"`
	LoggingFanCPU string `name:"logging-fancpu" help:"Fan/CPU logging level" default:"info" toml:"logging.fancpu" env:"LOGGING_FANCPU"`
	LoggingCharge string `help:"Charge limit logging level" default:"info" toml:"logging.charge" env:"LOGGING_CHARGE"`
	LoggingBIOS   string `name:"logging-bios" help:"BIOS settings logging level" default:"info" toml:"logging.bios" env:"LOGGING_BIOS"`
	LoggingStore  string `help:"State document logging level" default:"info" toml:"logging.store" env:"LOGGING_STORE"`
	LoggingAPI    string `name:"logging-api" help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingNats   string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

// daemonControllers holds whatever hardware this machine turned out to have.
type daemonControllers struct {
	all     []ctrl.Controller
	closers []io.Closer
	api     api.Options
	nats    nats.Controllers
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"kbdled": opts.LoggingKbdLED,
				"anime":  opts.LoggingAnime,
				"fancpu": opts.LoggingFanCPU,
				"charge": opts.LoggingCharge,
				"bios":   opts.LoggingBIOS,
				"store":  opts.LoggingStore,
				"api":    opts.LoggingAPI,
				"nats":   opts.LoggingNats,
			},
		})

		logger := logging.GetLogger("main")
		logger.Info("Starting rogd", "version", version.Get().Version)

		machine, err := laptop.Detect(opts.DMIRoot, opts.SupportTable)
		if err != nil {
			logger.Error("Failed to detect laptop", "error", err)
			os.Exit(1)
		}

		cfg, err := loadState(opts, machine.Modes(), logging.GetLogger("store"))
		if err != nil {
			logger.Error("Failed to load state document", "path", opts.StatePath, "error", err)
			os.Exit(1)
		}
		shared := store.NewShared(cfg)

		// Create event bus for in-process notifications
		eventBus := events.New()

		controllers := openControllers(machine, shared, eventBus, logger)
		apiOpts := controllers.api
		apiOpts.Bus = eventBus
		apiOpts.Laptop = machine
		apiOpts.PrometheusHandler = metrics.Handler()

		server := api.NewServer(&apiOpts)

		watcher := config.NewConfigWatcher(opts.Config, config.ReadLoggingConfig, logger)
		watcher.OnReload(func(lc logging.Config) {
			logger.Info("Settings changed, applying log levels", "level", lc.Level)
			logging.SetLevels(lc.Level, lc.Modules)
		})

		var natsServer *nats.Server
		var natsBridge *nats.Bridge
		if opts.NatsEnabled {
			natsLogger := logging.GetLogger("nats")
			natsServer = nats.NewServer(nats.ServerOptions{
				Host:   opts.NatsHost,
				Port:   opts.NatsPort,
				Logger: natsLogger,
			})
			natsBridge = nats.NewBridge(natsServer.ClientURL(), eventBus, controllers.nats, natsLogger)
		}

		ctx, cancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup

		hooks.OnStart(func() {
			for _, c := range controllers.all {
				if reloadErr := c.Reload(ctx); reloadErr != nil {
					logger.Warn("Failed to restore saved state", "controller", c.Name(), "error", reloadErr)
				}
				c.Start(ctx, &wg)
			}

			if natsServer != nil {
				if natsErr := natsServer.Start(); natsErr != nil {
					logger.Warn("NATS server not started", "error", natsErr)
					natsBridge = nil
				} else if natsErr := natsBridge.Start(); natsErr != nil {
					logger.Warn("NATS bridge not started", "error", natsErr)
					natsBridge = nil
				}
			}

			if watchErr := watcher.Start(ctx); watchErr != nil {
				logger.Warn("Settings watcher not started", "path", opts.Config, "error", watchErr)
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			if startErr := server.Start(opts.Listen); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyStopping); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if natsBridge != nil {
				natsBridge.Stop()
			}
			if natsServer != nil {
				natsServer.Stop()
			}

			// Controllers finish the command in flight, then exit
			cancel()
			wg.Wait()

			for _, c := range controllers.closers {
				if closeErr := c.Close(); closeErr != nil {
					logger.Warn("Error closing device", "error", closeErr)
				}
			}
		})
	})

	cli.Root().Use = "rogd"
	cli.Root().Short = "ASUS ROG laptop hardware control daemon"
	cli.Root().Version = version.Get().String()

	cli.Root().AddCommand(cmd.CreateProbeCmd())
	cli.Root().AddCommand(cmd.CreateLEDModesCmd())
	cli.Root().AddCommand(cmd.CreateWatchCmd())
	cli.Root().AddCommand(cmd.CreateFanCmd())

	// Run the CLI
	cli.Run()
}

// loadState reads the hardware state document, recovering from corruption
// when opts allow it.
func loadState(opts *Options, supported codec.ModeSet, logger *slog.Logger) (*store.Config, error) {
	cfg := store.New(opts.StatePath)
	if !opts.StateRecover {
		return cfg, cfg.Load(supported)
	}
	recovered, err := cfg.LoadOrRecover(supported)
	if recovered {
		logger.Warn("State document was corrupt, started from defaults", "path", cfg.Path(), "backup", cfg.Path()+"-old")
	}
	return cfg, err
}

// openControllers probes every controller. Missing hardware is logged and skipped.
func openControllers(machine laptop.Laptop, shared *store.Shared, bus *events.Bus, logger *slog.Logger) daemonControllers {
	var dc daemonControllers

	unavailable := func(feature string, err error) {
		if errors.Is(err, ctrl.ErrNotPresent) {
			logger.Info("Feature unavailable", "feature", feature, "reason", err)
			return
		}
		logger.Warn("Feature failed to initialise", "feature", feature, "error", err)
	}

	if led, err := ctrl.OpenKbdLED(laptop.KeyboardProductIDs, machine.Modes(), shared, bus); err != nil {
		unavailable("keyboard LED", err)
	} else {
		dc.all = append(dc.all, led)
		dc.closers = append(dc.closers, led)
		dc.api.KbdLED = led
		dc.nats.KbdLED = led
	}

	if anime, err := ctrl.OpenAnime(); err != nil {
		unavailable("AniMe matrix", err)
	} else {
		dc.all = append(dc.all, anime)
		dc.closers = append(dc.closers, anime)
		dc.api.Anime = anime
		dc.nats.Anime = anime
	}

	if fan, err := ctrl.NewFanCPU(ctrl.DefaultFanPaths(), shared, bus); err != nil {
		unavailable("fan control", err)
	} else {
		dc.all = append(dc.all, fan)
		dc.api.Fan = fan
		dc.nats.Fan = fan
	}

	if charge, err := ctrl.NewCharge(ctrl.ChargeLimitPath, shared, bus); err != nil {
		unavailable("charge control", err)
	} else {
		dc.all = append(dc.all, charge)
		dc.api.Charge = charge
		dc.nats.Charge = charge
	}

	if bios, err := ctrl.NewBIOS(context.Background(), ctrl.DefaultBIOSPaths(), nil, bus); err != nil {
		unavailable("BIOS settings", err)
	} else {
		dc.all = append(dc.all, bios)
		dc.api.BIOS = bios
		dc.nats.BIOS = bios
	}

	return dc
}
