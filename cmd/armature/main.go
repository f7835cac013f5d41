// armature is a headless AR session console. It wires the session
// controller to the simulated engine and evaluates AR scripts, either
// interactively (repl) or from files (run).
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arlow/armature/pkg/bridge"
	"github.com/arlow/armature/pkg/config"
	"github.com/arlow/armature/pkg/engine/headless"
	"github.com/arlow/armature/pkg/model"
	"github.com/arlow/armature/pkg/script"
	"github.com/arlow/armature/pkg/session"
)

var (
	configPath string
	cacheDir   string
	devLog     bool
)

var rootCmd = &cobra.Command{
	Use:   "armature",
	Short: "Headless AR session console",
	Long: `armature drives an AR session controller against a simulated
engine. Scripts place primitives and models, manage the scene graph,
and stage the virtual world (planes, tracking, camera motion), so a
whole session can run reproducibly without a device.

Run without arguments to start the interactive console.`,
	SilenceUsage: true,
	RunE:         runRepl,
}

// loadConfig resolves the effective configuration and builds the
// logger. Flag overrides win over file and environment values.
func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if cacheDir != "" {
		cfg.CacheDir = cacheDir
	}
	if devLog {
		cfg.Log.Development = true
		cfg.Log.Level = "debug"
	}
	log, err := cfg.Logger()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// stack owns the full session wiring for one command invocation.
type stack struct {
	cfg     config.Config
	log     *zap.Logger
	sim     *headless.Engine
	cache   *model.Cache
	bridge  *bridge.Bridge
	console *script.Console
}

// buildStack assembles engine, cache, session, bridge and console.
// evalTimeout zero keeps the console default.
func buildStack(evalTimeout time.Duration) (*stack, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}

	sim := headless.New(headless.Config{
		Width:  cfg.View.Width,
		Height: cfg.View.Height,
		Logger: log,
	})
	cache, err := model.OpenCache(cfg.CacheDir, log)
	if err != nil {
		return nil, err
	}

	dl := model.NewDownloader(model.DownloaderOptions{
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		RequestTimeout: cfg.ReadTimeout.Std(),
		Logger:         log,
	})
	ctrl := session.New(session.Deps{
		Engine:        sim,
		Resolver:      model.NewResolver(cache, dl, nil, log),
		Cache:         cache,
		FrameInterval: cfg.FrameInterval.Std(),
		Logger:        log,
	})

	b := bridge.New(ctrl, log)
	return &stack{
		cfg:     cfg,
		log:     log,
		sim:     sim,
		cache:   cache,
		bridge:  b,
		console: script.New(b, script.Options{Sim: sim, Timeout: evalTimeout, Logger: log}),
	}, nil
}

func (s *stack) close() {
	s.bridge.Dispose()
	s.cache.Close()
	_ = s.log.Sync()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Override the model cache directory")
	rootCmd.PersistentFlags().BoolVar(&devLog, "dev-log", false, "Development logging at debug level")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePathCmd)

	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
