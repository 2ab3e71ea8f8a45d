package backend

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rezon/mediasession/backend/ipc"
	"github.com/rezon/mediasession/backend/playback"
	"golang.org/x/term"
)

var (
	SeekToCLIArg   int64 = -1
	TitleCLIArg    *string
	AuthorCLIArg   *string
	ArtworkCLIArg  *string
	PlayingCLIArg  *bool
	PositionCLIArg *int64
	DurationCLIArg *int64

	FlagPlay       = flag.Bool("play", false, "send a play request to the host")
	FlagPause      = flag.Bool("pause", false, "send a pause request to the host")
	FlagPlayPause  = flag.Bool("play-pause", false, "toggle play/pause state")
	FlagPrevious   = flag.Bool("previous", false, "skip to the previous chapter")
	FlagNext       = flag.Bool("next", false, "skip to the next chapter")
	FlagForward    = flag.Bool("forward", false, "fast forward")
	FlagRewind     = flag.Bool("rewind", false, "rewind")
	FlagStop       = flag.Bool("stop", false, "send a stop request to the host")
	FlagEndSession = flag.Bool("end-session", false, "end the playback session and remove the notification")
	FlagEvents     = flag.Bool("events", false, "print control actions as they are routed to the host")
	FlagConfig     = flag.String("config", "", "path to the config file (daemon mode)")
	FlagVersion    = flag.Bool("version", false, "print app version and exit")
	FlagHelp       = flag.Bool("help", false, "print command line options and exit")
)

func init() {
	flag.Func("seek-to", "request a seek to the given position in milliseconds", func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		SeekToCLIArg = v
		return err
	})
	flag.Func("title", "set the title of the playing book", func(s string) error {
		TitleCLIArg = &s
		return nil
	})
	flag.Func("author", "set the author of the playing book", func(s string) error {
		AuthorCLIArg = &s
		return nil
	})
	flag.Func("artwork", "set the cover art (URL, file:// path or base64 data; empty to clear)", func(s string) error {
		ArtworkCLIArg = &s
		return nil
	})
	flag.BoolFunc("playing", "set whether playback is running (-playing=false for paused)", func(s string) error {
		v, err := strconv.ParseBool(s)
		PlayingCLIArg = &v
		return err
	})
	flag.Func("position", "set the playback position in milliseconds", func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		PositionCLIArg = &v
		return err
	})
	flag.Func("duration", "set the duration in milliseconds", func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		DurationCLIArg = &v
		return err
	})
}

// HaveCommandLineOptions reports whether any client option was given.
// Daemon options such as -config don't count.
func HaveCommandLineOptions() bool {
	visitedAny := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name != "config" {
			visitedAny = true
		}
	})
	return visitedAny
}

func commandLineStatePatch() (ipc.StatePatch, bool) {
	p := ipc.StatePatch{
		Title:      TitleCLIArg,
		Author:     AuthorCLIArg,
		ArtworkRef: ArtworkCLIArg,
		IsPlaying:  PlayingCLIArg,
		PositionMs: PositionCLIArg,
		DurationMs: DurationCLIArg,
	}
	return p, p != (ipc.StatePatch{})
}

// RunCommandLineOptions performs the requested client operations against
// a running daemon. State updates are sent before transport requests.
func RunCommandLineOptions(ctx context.Context, cli *ipc.Client, out io.Writer) error {
	if p, ok := commandLineStatePatch(); ok {
		if err := cli.UpdateState(p); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
	}

	transport := []struct {
		set bool
		f   func() error
	}{
		{*FlagPlay, cli.Play},
		{*FlagPause, cli.Pause},
		{*FlagPlayPause, cli.PlayPause},
		{*FlagPrevious, cli.Previous},
		{*FlagNext, cli.Next},
		{*FlagForward, cli.Forward},
		{*FlagRewind, cli.Rewind},
		{*FlagStop, cli.Stop},
		{SeekToCLIArg >= 0, func() error { return cli.SeekTo(SeekToCLIArg) }},
		{*FlagEndSession, cli.EndSession},
	}
	var errs []error
	for _, t := range transport {
		if t.set {
			errs = append(errs, t.f())
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	if *FlagEvents {
		return printEvents(ctx, cli, out)
	}
	return nil
}

func printEvents(ctx context.Context, cli *ipc.Client, out io.Writer) error {
	human := false
	if f, ok := out.(*os.File); ok {
		human = term.IsTerminal(int(f.Fd()))
	}
	enc := json.NewEncoder(out)
	err := cli.Events(ctx, func(e ipc.ActionEvent) error {
		if !human {
			return enc.Encode(e)
		}
		switch {
		case e.Action == playback.ActionSeekTo:
			_, err := fmt.Fprintf(out, "%-12s %d ms\n", e.Action, e.PositionMs)
			return err
		case e.ID != "":
			_, err := fmt.Fprintf(out, "%-12s %s\n", e.Action, e.ID)
			return err
		}
		_, err := fmt.Fprintln(out, e.Action)
		return err
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}
