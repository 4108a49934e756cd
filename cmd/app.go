package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/Nao-Mk2/cloudwatch-tail/internal/client"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/logging"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/model"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/prompt"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/store"
	"github.com/Nao-Mk2/cloudwatch-tail/internal/tail"
)

// Backend is the CloudWatch Logs query surface used by the commands.
type Backend interface {
	DescribeLogGroups(ctx context.Context, pattern string, limit int32) ([]model.LogGroup, error)
	SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error)
}

// Tailer streams a log group until it ends or ctx is cancelled.
type Tailer interface {
	Tail(ctx context.Context, logGroup, filterPattern string) error
}

// App carries the explicitly constructed dependencies of every command.
// Nil fields are filled from Options by Init.
type App struct {
	Options *Options

	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer

	Logger      *slog.Logger
	Store       *store.Store
	Prompter    prompt.Prompter
	Interactive func() bool
	Tailer      Tailer
	// NewBackend creates a backend; maxEvents caps events per log group
	// (0 means unlimited).
	NewBackend func(ctx context.Context, maxEvents int) (Backend, error)
	Now        func() time.Time
	// Signals are the OS signals that stop a tail session.
	Signals []os.Signal
}

// NewApp returns an App for the real process streams.
func NewApp(opts *Options, stdin *os.File, stdout, stderr io.Writer) *App {
	return &App{Options: opts, Stdin: stdin, Stdout: stdout, Stderr: stderr}
}

// Init fills unset dependencies. It is called once before any command runs.
func (a *App) Init() error {
	if a.Options == nil {
		a.Options = DefaultOptions()
	}
	if a.Stdout == nil {
		a.Stdout = os.Stdout
	}
	if a.Stderr == nil {
		a.Stderr = os.Stderr
	}
	if a.Logger == nil {
		a.Logger = logging.New(a.Stderr, a.Options.Level())
	}
	if a.Store == nil {
		path := a.Options.StorePath
		if path == "" {
			p, err := store.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		st, err := store.Open(path)
		if err != nil {
			return err
		}
		a.Logger.Debug("store opened", "path", st.Path())
		a.Store = st
	}
	if a.Prompter == nil {
		stdin := a.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		term := prompt.NewTerminal(stdin, a.Stderr)
		a.Prompter = term
		if a.Interactive == nil {
			a.Interactive = term.Interactive
		}
	}
	if a.Interactive == nil {
		a.Interactive = func() bool { return false }
	}
	if a.Tailer == nil {
		launcher := tail.NewLauncher(a.Options.AWSBinary, a.Options.Region, a.Options.Profile)
		ctrl := tail.NewController(launcher, a.Stdout, a.Stderr, a.Logger)
		ctrl.Started = a.sessionStarted
		a.Tailer = ctrl
	}
	if a.NewBackend == nil {
		auth := client.AuthOptions{Region: a.Options.Region, Profile: a.Options.Profile}
		a.NewBackend = func(ctx context.Context, maxEvents int) (Backend, error) {
			cw, err := client.NewCloudWatchClient(ctx, auth)
			if err != nil {
				return nil, err
			}
			cw.MaxEvents = maxEvents
			return cw, nil
		}
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	if len(a.Signals) == 0 {
		a.Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	return nil
}

var noticeColor = color.New(color.FgCyan)

func (a *App) notice(format string, args ...any) {
	noticeColor.Fprintf(a.Stderr, format+"\n", args...)
}

// sessionStarted prints the session id under --verbose.
func (a *App) sessionStarted(id string, pid int) {
	if a.Options.Verbose {
		a.notice("Session %s (aws pid %d).", id, pid)
	}
}

// resolveGroup maps a favorite keyword to its log group; other values are
// returned unchanged.
func (a *App) resolveGroup(nameOrKeyword string) (string, error) {
	group, err := a.Store.Favorite(nameOrKeyword)
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		return nameOrKeyword, nil
	}
	if err != nil {
		return "", err
	}
	a.Logger.Debug("resolved favorite", "keyword", nameOrKeyword, "log_group", group)
	return group, nil
}

// tail records pattern as a recent search and streams logGroup until the
// stream ends or the user interrupts. An interrupt is not an error.
func (a *App) tail(ctx context.Context, logGroup, pattern string) error {
	if pattern != "" {
		if err := a.Store.SaveRecentSearch(pattern); err != nil {
			return fmt.Errorf("save recent search: %w", err)
		}
	}

	// The handler lives exactly as long as this session.
	ctx, stop := signal.NotifyContext(ctx, a.Signals...)
	defer stop()

	if pattern != "" {
		a.notice("Tailing %s (filter: %s). Press Ctrl+C to stop.", logGroup, pattern)
	} else {
		a.notice("Tailing %s. Press Ctrl+C to stop.", logGroup)
	}
	err := a.Tailer.Tail(ctx, logGroup, pattern)
	if errors.Is(err, tail.ErrStopped) {
		a.notice("Stopped tailing %s.", logGroup)
		return nil
	}
	return err
}
