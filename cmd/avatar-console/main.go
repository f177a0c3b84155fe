// avatar-console drives the avatar runtime from a terminal without a
// renderer: clip loads are logged and speech plays through the speaker.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/app"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/audio"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bus"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/config"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
)

func run(configPath string, showEvents, mute bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	c := &console{}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "avatar> ",
		AutoComplete:    c.completer(),
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: rl.Stderr(), TimeFormat: "15:04:05"}).
		Level(zerolog.InfoLevel).
		With().Timestamp().Logger()

	var output audio.Output
	if !mute {
		if out, err := audio.NewSpeakerOutput(cfg.Audio.SampleRate, cfg.Audio.SpeakerBuffer); err == nil {
			output = out
		} else {
			logger.Warn().Err(err).Msg("no sound device, speech plays silently")
		}
	}
	if output == nil {
		paced := audio.NewPacedOutput(cfg.Audio.SampleRate, 10*time.Millisecond)
		defer paced.Close()
		output = paced
	}
	defer output.Clear()

	a := app.New(cfg, logger)
	face := expression.NewTable()
	if err := a.Attach(app.Peripherals{Loader: logLoader{logger: logger}, Face: face, Output: output}); err != nil {
		return err
	}
	if showEvents {
		a.Bus.SubscribeMultiple(bus.AllEventTypes, func(e bus.Event) {
			fmt.Fprintf(rl.Stdout(), "event %s %v\n", e.Type, e.Data)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	c.avatar, c.face = a.Avatar, face
	fmt.Fprintln(rl.Stdout(), "type help for commands")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		cmdCtx, done := context.WithTimeout(ctx, 5*time.Second)
		err = c.exec(cmdCtx, line, rl.Stdout())
		done()
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
		}
	}

	cancel()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func historyFile() string {
	dir, err := config.GetConfigDir()
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ""
	}
	return dir + string(os.PathSeparator) + "console_history"
}

func main() {
	var (
		configPath string
		showEvents bool
		mute       bool
	)
	rootCmd := &cobra.Command{
		Use:          "avatar-console",
		Short:        "Interactive console for the virtual teacher avatar runtime",
		Version:      app.Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, showEvents, mute)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/.virtualteacher/config.yaml)")
	rootCmd.Flags().BoolVar(&showEvents, "events", false, "print bus events")
	rootCmd.Flags().BoolVar(&mute, "mute", false, "do not open the sound device")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
