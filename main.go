package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/inputbridge/pkg/capture"
	"github.com/sema/inputbridge/pkg/core"
	"github.com/sema/inputbridge/pkg/loop"
	"github.com/sema/inputbridge/pkg/remote"
	"github.com/sema/inputbridge/pkg/savestate"
	"github.com/sema/inputbridge/pkg/script"
	"github.com/sema/inputbridge/pkg/session"
)

// sessionFlags are shared by every command that starts a session
type sessionFlags struct {
	Game       string   `help:"Game name used for save files" default:"game"`
	Root       string   `help:"User data root holding the Saves directory" type:"path" default:"."`
	InputTypes []string `help:"Input types the game declares"`
	Shifter    bool     `help:"Show the gear shifter on racing games"`
	NoOverlay  bool     `help:"Start with the touch overlay hidden"`

	ChordWindow    time.Duration `help:"Maximum gap between Start and Select presses of a chord" default:"120ms"`
	CaptureDelay   time.Duration `help:"Delay before a save thumbnail is captured" default:"250ms"`
	ThumbnailWidth int           `help:"Maximum save thumbnail width" default:"640"`
}

func (f sessionFlags) config() session.Config {
	return session.Config{
		GameName:       f.Game,
		UserDataRoot:   f.Root,
		InputTypes:     f.InputTypes,
		ShifterEnabled: f.Shifter,
		OverlayEnabled: !f.NoOverlay,
		ChordWindow:    f.ChordWindow,
		CaptureDelay:   f.CaptureDelay,
		ThumbnailWidth: f.ThumbnailWidth,
	}
}

type serveCmd struct {
	sessionFlags

	Listen    string `help:"Address the remote controller connects to" default:":8090"`
	Display   int    `help:"Display captured for save thumbnails" default:"0"`
	NoCapture bool   `help:"Do not write save thumbnails"`
}

func (r *serveCmd) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// the loop outlives ctx so the session can be closed on it
	loopCtx, stopLoop := context.WithCancel(context.Background())
	l := loop.New()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = l.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	opts := []session.Option{session.WithExitHandler(cancel)}
	if !r.NoCapture {
		opts = append(opts, session.WithCapturer(capture.NewDisplay(l, r.Display)))
	}

	var s *session.Session
	var err error
	if callErr := l.Call(ctx, func() {
		s, err = session.New(r.config(), core.NewLogger(r.Game), l, opts...)
	}); callErr != nil {
		return callErr
	}
	if err != nil {
		return err
	}

	return serveSession(ctx, l, s, func(ctx context.Context) error {
		return remote.New(l, s).ListenAndServe(ctx, r.Listen)
	})
}

// serveSession runs serve until it returns, then closes s on l. l must still
// be running so the release of held controls and the final unpause reach the
// core.
func serveSession(ctx context.Context, l *loop.Loop, s *session.Session, serve func(ctx context.Context) error) error {
	serveErr := serve(ctx)
	if err := l.Call(context.Background(), s.Close); err != nil {
		log.Warnf("closing session: %v", err)
	}
	return serveErr
}

type replayCmd struct {
	sessionFlags

	Path   string        `arg:"" name:"path" help:"Input script to replay" type:"existingfile"`
	Settle time.Duration `help:"Time to keep the clock running after the last step" default:"1s"`
	Strict bool          `help:"Fail if the session refuses any step"`
}

func (r *replayCmd) Run() error {
	f, err := os.Open(r.Path)
	if err != nil {
		return errors.Wrap(err, "opening script")
	}
	defer f.Close()

	steps, err := script.Parse(f)
	if err != nil {
		return errors.Wrap(err, r.Path)
	}

	res, err := script.Replay(r.config(), steps, script.WithSettle(r.Settle), script.WithGameName(r.Game))
	if err != nil {
		return err
	}
	if err := res.Write(os.Stdout); err != nil {
		return err
	}
	if r.Strict && len(res.Errors) > 0 {
		return errors.Errorf("%d steps refused", len(res.Errors))
	}
	return nil
}

type slotsCmd struct {
	Game string `help:"Game name used for save files" required:""`
	Root string `help:"User data root holding the Saves directory" type:"path" default:"."`
}

func (r *slotsCmd) Run() error {
	store := savestate.New(r.Root, func() string { return r.Game })
	for _, slot := range store.Slots() {
		if !slot.HasData {
			continue
		}
		log.Infof("slot %d saved %s thumbnail %q", slot.Index, slot.LastModified.Format(time.RFC3339), slot.ScreenshotPath)
	}
	return nil
}

var root struct {
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"info"`

	Serve  serveCmd  `cmd:"" help:"Serve the input layer to a remote controller"`
	Replay replayCmd `cmd:"" help:"Replay an input script and print what reaches the core"`
	Slots  slotsCmd  `cmd:"" help:"List the save slots of a game"`
}

func main() {
	cli := kong.Parse(&root,
		kong.Description("Touch overlay, chord and pause handling in front of an emulator core."),
		kong.Configuration(kong.JSON, "/etc/inputbridge.json", "~/.inputbridge.json"),
	)
	cli.FatalIfErrorf(log.Base().SetLevel(root.LogLevel))

	err := cli.Run()
	cli.FatalIfErrorf(err)
}
