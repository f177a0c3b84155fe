// Virtual teacher avatar service: sequences the avatar's animation clips,
// drives lip sync from speech audio and streams both to the browser
// renderer over a WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/animation"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/app"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bridge"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/clips"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/config"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/httpapi"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/logging"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/remote"
)

var (
	configPath string
	listenAddr string
	assetRoot  string
)

// loadEnvFiles loads ~/.virtualteacher/.env and ./.env. Variables already
// set in the environment win.
func loadEnvFiles() []string {
	var paths []string
	if dir, err := config.GetConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	paths = append(paths, ".env")

	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("skipping %s: %v", p, err)
			continue
		}
		loaded = append(loaded, p)
	}
	return loaded
}

func loadConfig() (*config.Loader, *config.Config, error) {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return loader, config.DefaultConfig(), err
	}
	if listenAddr != "" {
		cfg.Server.Listen = listenAddr
	}
	if assetRoot != "" {
		cfg.Server.AssetRoot = assetRoot
	}
	return loader, cfg, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	return logging.New(&logging.Config{
		LogDir:     cfg.Logging.Dir,
		Level:      logging.ParseLevel(cfg.Logging.Level),
		MaxHistory: cfg.Logging.MaxHistory,
		Console:    cfg.Logging.Console,
	})
}

// openOutput prefers the sound device and falls back to a silent clock
// driven output so speech still animates on headless hosts.
func openOutput(cfg *config.Config, logger zerolog.Logger) (audio.Output, func()) {
	out, err := audio.NewSpeakerOutput(cfg.Audio.SampleRate, cfg.Audio.SpeakerBuffer)
	if err == nil {
		return out, out.Clear
	}
	logger.Warn().Err(err).Msg("no sound device, speech plays silently")
	paced := audio.NewPacedOutput(cfg.Audio.SampleRate, 10*time.Millisecond)
	return paced, func() {
		paced.Clear()
		paced.Close()
	}
}

func serve(cmd *cobra.Command, args []string) error {
	envFiles := loadEnvFiles()

	loader, cfg, cfgErr := loadConfig()

	syslog, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer syslog.Close()

	mainLog := syslog.Component("main")
	mainLog.Info().Str("version", app.Version).Strs("env_files", envFiles).Msg("virtual teacher starting")
	if cfgErr != nil {
		mainLog.Warn().Err(cfgErr).Msg("failed to load config, using defaults")
	} else {
		mainLog.Info().Str("file", loader.ConfigFile()).Str("listen", cfg.Server.Listen).Msg("configuration loaded")
	}

	zlog := syslog.Zerolog()
	a := app.New(cfg, zlog)
	hub := remote.NewHub(a.Loop, a.Clock, cfg.RemoteConfig(), a.Bus, zlog)
	defer hub.Close()

	output, closeOutput := openOutput(cfg, mainLog)
	defer closeOutput()

	if err := a.Attach(app.Peripherals{Loader: hub, Face: hub, Output: output, Renderers: hub}); err != nil {
		return err
	}
	a.OnTick(hub.Flush)
	a.Bus.SubscribeMultiple(bus.AllEventTypes, hub.Broadcast)

	// A renderer that (re)connects has nothing loaded; replay what is active.
	hub.OnConnect(func() {
		name := a.Controller.State().Active
		if name == "" {
			name = animation.IdleSequence
		}
		if err := a.Controller.PlaySequence(name); err != nil {
			mainLog.Warn().Err(err).Str("sequence", name).Msg("replay for renderer failed")
		}
	})

	if cc, err := cfg.ControllerConfig(); err == nil {
		clips.Check(cfg.Server.AssetRoot, cc.Catalogue, cc.Idle.Specials, zlog)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfgErr == nil {
		loader.Watch(func(next *config.Config, err error) {
			if err != nil {
				mainLog.Warn().Err(err).Msg("config change rejected")
				return
			}
			if err := a.Reconfigure(ctx, next); err != nil {
				mainLog.Warn().Err(err).Msg("config change not applied")
			}
		})
	}

	e := httpapi.New(httpapi.Handlers{
		Avatar: a.Avatar,
		Logs:   bridge.NewLogBridge(syslog),
		Socket: hub,
	}, cfg.Server.AllowedOrigins, zlog)

	go func() {
		mainLog.Info().Str("addr", cfg.Server.Listen).Msg("http server listening")
		if err := e.Start(cfg.Server.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLog.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	runErr := a.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		mainLog.Warn().Err(err).Msg("http shutdown")
	}
	mainLog.Info().Msg("virtual teacher stopped")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func checkClips(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cc, err := cfg.ControllerConfig()
	if err != nil {
		return err
	}
	if cfg.Server.AssetRoot == "" {
		return fmt.Errorf("no asset root: set server.asset_root or pass --assets")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
	problems := clips.Check(cfg.Server.AssetRoot, cc.Catalogue, cc.Idle.Specials, logger)
	for _, p := range problems {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", p.Clip, p.Err)
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d clip problem(s)", len(problems))
	}
	fmt.Fprintln(cmd.OutOrStdout(), "all clips ok")
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "virtualteacher",
		Short:        "Virtual teacher avatar animation and lip sync service",
		Version:      app.Version,
		SilenceUsage: true,
		RunE:         serve,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.virtualteacher/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&assetRoot, "assets", "", "local copy of the renderer assets")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "listen address, overrides server.listen")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "check-clips",
		Short: "Verify that every catalogue clip exists and pose clips contain an animation",
		Args:  cobra.NoArgs,
		RunE:  checkClips,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
