package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/bloom"
	"github.com/fwojciec/pagewalk/crawl"
	"github.com/fwojciec/pagewalk/detect"
	"github.com/fwojciec/pagewalk/fs"
	pwhttp "github.com/fwojciec/pagewalk/http"
	"github.com/fwojciec/pagewalk/redis"
	"github.com/fwojciec/pagewalk/rod"
	pwslog "github.com/fwojciec/pagewalk/slog"
	"github.com/fwojciec/pagewalk/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	m.Stdin = os.Stdin

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Default database path. Set before calling Run().
	DBPath string

	// Stdin carries interactive p/r/s commands. Nil disables them.
	Stdin io.Reader

	// Tabs replaces the browser or HTTP backend when set.
	Tabs pagewalk.TabOpener

	// NewID generates session ids. Nil selects random UUIDs.
	NewID func() string

	// Storage opened by Run.
	DB       *sqlite.DB
	Redis    *redis.Client
	Sessions pagewalk.SessionService

	Browser *rod.BrowserManager
	Engine  *crawl.Engine
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		DBPath: defaultDBPath(),
	}
}

// Close stops running sessions and releases the browser and storage.
func (m *Main) Close() error {
	var errs []error
	if m.Engine != nil {
		errs = append(errs, m.Engine.Close())
		m.Engine = nil
	}
	if m.Browser != nil {
		errs = append(errs, m.Browser.Close())
		m.Browser = nil
	}
	if m.DB != nil {
		errs = append(errs, m.DB.Close())
		m.DB = nil
	}
	if m.Redis != nil {
		errs = append(errs, m.Redis.Close())
		m.Redis = nil
	}
	return errors.Join(errs...)
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	// Sessions report from their own goroutines.
	stdout, stderr = &syncWriter{w: stdout}, &syncWriter{w: stderr}

	deps := &Dependencies{
		Ctx:    ctx,
		Stdin:  m.Stdin,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("pagewalk"),
		kong.Description("Walk paginated listings and collect their items"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
		kong.Vars{"db_path": m.DBPath},
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'pagewalk --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	deps.Logger = newLogger(stderr, cli.Verbose)

	if err := m.openStore(ctx, cli, stderr); err != nil {
		return err
	}
	defer m.Close()

	deps.Sessions = pwslog.NewLoggingSessionService(m.Sessions, deps.Logger)

	var backend *BackendFlags
	switch strings.Fields(kongCtx.Command())[0] {
	case "run":
		backend = &cli.Run.BackendFlags
	case "resume":
		backend = &cli.Resume.BackendFlags
	}
	if backend != nil {
		if err := m.openEngine(deps, backend); err != nil {
			return err
		}
		deps.Engine = m.Engine
	}

	return kongCtx.Run(deps)
}

func (m *Main) openStore(ctx context.Context, cli *CLI, stderr io.Writer) error {
	if cli.Redis != "" {
		client, err := redis.Open(ctx, redis.Options{Addr: cli.Redis})
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Unset PAGEWALK_REDIS_ADDR to use the local SQLite database")
			return err
		}
		m.Redis = client
		m.Sessions = redis.NewSessionService(client)
		return nil
	}

	m.DB = sqlite.NewDB(cli.DB)
	if err := m.DB.Open(); err != nil {
		m.DB = nil
		fmt.Fprintf(stderr, "Hint: Set PAGEWALK_DB to use a different database path\n")
		return fmt.Errorf("failed to open database at %q: %w", cli.DB, err)
	}
	m.Sessions = sqlite.NewSessionService(m.DB)
	return nil
}

func (m *Main) openEngine(deps *Dependencies, b *BackendFlags) error {
	tabs := m.Tabs
	if tabs == nil {
		switch b.Backend {
		case "http":
			tabs = pwhttp.NewTabOpener(pwhttp.WithTimeout(b.Timeout))
		default:
			manager, err := rod.NewBrowserManager(
				rod.WithHeadless(!b.Headful),
				rod.WithStealth(!b.NoStealth),
				rod.WithTabOptions(rod.WithLogger(deps.Logger)),
			)
			if err != nil {
				fmt.Fprintln(deps.Stderr, "Hint: Chrome or Chromium must be installed, or use --backend=http")
				return fmt.Errorf("failed to start browser: %w", err)
			}
			m.Browser = manager
			tabs = manager
		}
	}

	m.Engine = &crawl.Engine{
		Tabs:             pwslog.NewLoggingTabOpener(tabs, deps.Logger),
		Ranker:           pwslog.NewLoggingRanker(detect.NewRanker(), deps.Logger),
		Extractor:        pwslog.NewLoggingExtractor(newItemExtractor(), deps.Logger),
		PayloadExtractor: pwslog.NewLoggingExtractor(newPayloadItemExtractor(), deps.Logger),
		Sessions:         deps.Sessions,
		NewSink:          fs.Sink(b.Out),
		NewItemSet:       bloom.NewDefaultItemSet,
		Limiter:          crawl.NewDomainLimiter(b.Interval),
		OnStatus:         newStatusPrinter(deps.Stdout).Print,
		Logger:           deps.Logger,
		NewID:            m.NewID,
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pagewalk.db"
	}
	dir := filepath.Join(home, ".pagewalk")
	_ = os.MkdirAll(dir, 0755)
	return filepath.Join(dir, "pagewalk.db")
}
