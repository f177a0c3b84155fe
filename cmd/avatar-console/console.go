package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/bridge"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/expression"
	"github.com/kk98033/NTTU-114-Project-Exhibition-Virtual-Teacher-Web-Frontend/internal/scheduler"
)

var errQuit = errors.New("quit")

const help = `commands:
  play <sequence>     play a catalogue sequence
  start               play the greeting sequence
  stop                stop the current sequence
  idle suspend|resume toggle idle variation
  expr <name>|reset   set an expression preset
  speak <file>        lip sync a .wav or .ogg file
  silence             stop speaking
  state               show playback state
  face                show non-zero face weights
  sequences           list the catalogue
  quit`

// logLoader stands in for the renderer: every clip loads instantly and is
// logged.
type logLoader struct {
	logger zerolog.Logger
}

func (l logLoader) LoadSkeletalClip(ctx context.Context, path string) *scheduler.Future {
	l.logger.Info().Str("kind", "skeletal").Str("clip", path).Msg("load clip")
	return scheduler.Resolved(nil)
}

func (l logLoader) LoadPoseClip(ctx context.Context, path string) *scheduler.Future {
	l.logger.Info().Str("kind", "pose").Str("clip", path).Msg("load clip")
	return scheduler.Resolved(nil)
}

type console struct {
	avatar *bridge.AvatarBridge
	face   *expression.Table
}

func (c *console) exec(ctx context.Context, line string, out io.Writer) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch fields[0] {
	case "help", "?":
		fmt.Fprintln(out, help)
	case "quit", "exit":
		return errQuit
	case "play":
		if arg == "" {
			return fmt.Errorf("usage: play <sequence>")
		}
		return c.avatar.PlaySequence(ctx, arg)
	case "start":
		return c.avatar.PlayStart(ctx)
	case "stop":
		return c.avatar.StopCurrent(ctx)
	case "idle":
		switch arg {
		case "suspend":
			return c.avatar.SuspendIdle(ctx)
		case "resume":
			return c.avatar.ResumeIdle(ctx)
		default:
			return fmt.Errorf("usage: idle suspend|resume")
		}
	case "expr":
		if arg == "reset" {
			arg = ""
		}
		return c.avatar.SetExpression(ctx, arg)
	case "speak":
		if arg == "" {
			return fmt.Errorf("usage: speak <file>")
		}
		return c.avatar.Speak(ctx, arg)
	case "silence":
		return c.avatar.StopSpeaking(ctx)
	case "state":
		st, err := c.avatar.GetState(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "sequence=%q step=%d idle_suspended=%t speaking=%t\n",
			st.Animation.Active, st.Animation.Step, st.Animation.IdleSuspended, st.Speaking)
	case "face":
		for _, id := range c.face.Nonzero() {
			fmt.Fprintf(out, "%-10s %.2f\n", id, c.face.Get(id))
		}
	case "sequences":
		names, err := c.avatar.Sequences(ctx)
		if err != nil {
			return err
		}
		sort.Strings(names)
		fmt.Fprintln(out, strings.Join(names, " "))
	default:
		return fmt.Errorf("unknown command %q, try help", fields[0])
	}
	return nil
}

func (c *console) completer() *readline.PrefixCompleter {
	exprs := make([]readline.PrefixCompleterInterface, 0, len(expression.Presets)+1)
	for _, id := range expression.Presets {
		exprs = append(exprs, readline.PcItem(id))
	}
	exprs = append(exprs, readline.PcItem("reset"))

	return readline.NewPrefixCompleter(
		readline.PcItem("play", readline.PcItemDynamic(func(string) []string {
			if c.avatar == nil {
				return nil
			}
			names, _ := c.avatar.Sequences(context.Background())
			sort.Strings(names)
			return names
		})),
		readline.PcItem("start"),
		readline.PcItem("stop"),
		readline.PcItem("idle", readline.PcItem("suspend"), readline.PcItem("resume")),
		readline.PcItem("expr", exprs...),
		readline.PcItem("speak"),
		readline.PcItem("silence"),
		readline.PcItem("state"),
		readline.PcItem("face"),
		readline.PcItem("sequences"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
