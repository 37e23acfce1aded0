// Package app wires configuration, logging, the ability catalog, and the hub
// into a runnable server process.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/caarlos0/env/v11"

	"emberstaff/server"
	"emberstaff/server/abilities/catalog"
	"emberstaff/server/internal/audio"
	"emberstaff/server/internal/cast"
	"emberstaff/server/internal/engine"
	servernet "emberstaff/server/internal/net"
	"emberstaff/server/internal/sim"
	"emberstaff/server/internal/telemetry"
	"emberstaff/server/logging"
	loggingsinks "emberstaff/server/logging/sinks"
)

// Config is the process configuration, populated from the environment.
type Config struct {
	Addr           string  `env:"EMBERSTAFF_ADDR" envDefault:":8080"`
	TickRate       int     `env:"EMBERSTAFF_TICK_RATE" envDefault:"30"`
	AbilityDir     string  `env:"EMBERSTAFF_ABILITY_DIR" envDefault:"abilities/defs"`
	DefaultAbility string  `env:"EMBERSTAFF_DEFAULT_ABILITY" envDefault:"emberbolt"`
	ClientDir      string  `env:"EMBERSTAFF_CLIENT_DIR"`
	LogJSONPath    string  `env:"EMBERSTAFF_LOG_JSON"`
	EnableAudio    bool    `env:"EMBERSTAFF_AUDIO" envDefault:"false"`
	WatchAbilities bool    `env:"EMBERSTAFF_WATCH_ABILITIES" envDefault:"true"`
	ManaMax        float64 `env:"EMBERSTAFF_MANA_MAX" envDefault:"100"`
	ManaRegen      float64 `env:"EMBERSTAFF_MANA_REGEN" envDefault:"4"`
}

// ParseConfig loads configuration from environment variables.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Run assembles the server and blocks until the listener stops or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	stdLogger := log.Default()
	telemetryLogger := telemetry.WrapLogger(stdLogger)

	logCfg := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stdout, logCfg.Console)},
	}
	if cfg.LogJSONPath != "" {
		logCfg.JSON.FilePath = cfg.LogJSONPath
		logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
		jsonSink, err := loggingsinks.NewJSONSink(logCfg.JSON)
		if err != nil {
			return fmt.Errorf("open json log sink: %w", err)
		}
		namedSinks = append(namedSinks, logging.NamedSink{Name: "json", Sink: jsonSink})
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, namedSinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	abilityCatalog, err := catalog.Load(cfg.AbilityDir, catalog.StandardEffects(telemetryLogger))
	if err != nil {
		return fmt.Errorf("load ability catalog: %w", err)
	}
	telemetryLogger.Printf("loaded %d abilities from %s", abilityCatalog.Len(), cfg.AbilityDir)

	var audioCue cast.AudioCue = cast.NopAudio{}
	if cfg.EnableAudio {
		player := audio.NewPlayer()
		if err := player.Initialize(); err != nil {
			telemetryLogger.Printf("audio disabled: %v", err)
		} else {
			audioCue = player
			defer player.Cleanup()
		}
	}

	metrics := logging.NewMetrics()
	deps := sim.Deps{
		Logger:    telemetryLogger,
		Metrics:   telemetry.WrapMetrics(metrics),
		Clock:     logging.SystemClock{},
		Publisher: router,
	}

	eng := engine.New(engine.Config{
		Deps:             deps,
		Abilities:        abilityCatalog,
		DefaultAbilityID: cfg.DefaultAbility,
		Audio:            audioCue,
		ManaMax:          cfg.ManaMax,
		ManaRegen:        cfg.ManaRegen,
	})

	hub := server.NewHub(server.HubConfig{
		Engine: eng,
		Loop: sim.LoopConfig{
			TickRate:        cfg.TickRate,
			CatchupMaxTicks: 4,
			CommandCapacity: 512,
			PerActorLimit:   32,
			WarningStep:     64,
		},
		Metrics:    metrics,
		AbilityIDs: abilityCatalog.IDs,
	})

	if cfg.WatchAbilities {
		watcher, err := catalog.NewWatcher(cfg.AbilityDir)
		if err != nil {
			telemetryLogger.Printf("ability hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
			go func() {
				for {
					select {
					case name, ok := <-watcher.Events:
						if !ok {
							return
						}
						if err := abilityCatalog.Reload(); err != nil {
							telemetryLogger.Printf("ability reload failed after %s changed: %v", name, err)
							continue
						}
						hub.ReloadAbilities(abilityCatalog)
						telemetryLogger.Printf("reloaded %d abilities after %s changed", abilityCatalog.Len(), name)
					case err, ok := <-watcher.Errors:
						if !ok {
							return
						}
						telemetryLogger.Printf("ability watcher error: %v", err)
					}
				}
			}()
		}
	}

	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir: cfg.ClientDir,
		Logger:    stdLogger,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	telemetryLogger.Printf("server listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
