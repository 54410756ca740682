// Package cli is the yumex command tree. Every command opens one daemon
// session, runs, and closes it again.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"yumex/internal/common/fsutil"
	"yumex/internal/config"
	"yumex/internal/dnfdaemon"
	"yumex/internal/pkgcache"
	"yumex/internal/transaction"
	"yumex/pkg/types"
)

const defaultConfigPath = "~/.config/yumex/config.yaml"

// Daemon is the part of *dnfdaemon.Client the commands use.
type Daemon interface {
	transaction.Backend
	pkgcache.Fetcher
	ListPackages(ctx context.Context, bucket types.Bucket) ([]types.PackageRecord, error)
	ListLocal(ctx context.Context, paths []string) ([]types.PackageRecord, error)
	Search(ctx context.Context, key string) ([]string, error)
	Repositories(ctx context.Context) ([]types.Repository, error)
	EnableRepos(ctx context.Context, ids ...string) error
	DisableRepos(ctx context.Context, ids ...string) error
	ExpireCache(ctx context.Context) error
	Advisories(ctx context.Context, kind string, names []string) ([]types.Advisory, error)
	Status() types.StatusResponse
	Events() *dnfdaemon.Queue
	Reload(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a daemon session.
type Dialer func(ctx context.Context, cfg dnfdaemon.ClientConfig) (Daemon, error)

// DialSystemBus connects to the daemon on the system bus.
func DialSystemBus(ctx context.Context, cfg dnfdaemon.ClientConfig) (Daemon, error) {
	bus, err := dnfdaemon.ConnectSystemBus()
	if err != nil {
		return nil, err
	}
	c, err := dnfdaemon.NewClient(ctx, bus, cfg)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return c, nil
}

// IO bundles the streams commands read from and write to.
type IO struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// app carries the state shared by all commands of one invocation.
type app struct {
	io   IO
	dial Dialer

	configPath string
	logLevel   string
	archs      string
	assumeYes  bool

	cfg config.Config
	log zerolog.Logger
}

// env is one open daemon session with the cache and coordinator on top.
type env struct {
	daemon Daemon
	cache  *pkgcache.Cache
	coord  *transaction.Coordinator
}

// NewRootCmd builds the command tree. dial nil means DialSystemBus.
func NewRootCmd(streams IO, dial Dialer) *cobra.Command {
	if dial == nil {
		dial = DialSystemBus
	}
	a := &app{io: streams, dial: dial}
	root := &cobra.Command{
		Use:           "yumex",
		Short:         "Package manager front end for the dnf5 daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (.yaml|.json|.toml), default "+defaultConfigPath+" when present")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")
	root.PersistentFlags().StringVar(&a.archs, "arch", "", "Comma separated architectures to show (overrides config arch_filter)")
	root.PersistentFlags().BoolVarP(&a.assumeYes, "assumeyes", "y", false, "Answer yes to every confirmation")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.setup()
	}

	root.AddCommand(
		a.listCmd(),
		a.searchCmd(),
		a.infoCmd(),
		a.transactCmd("install", "Install packages or local RPM files", types.BucketAvailable),
		a.transactCmd("remove", "Remove installed packages", types.BucketInstalled),
		a.transactCmd("update", "Update packages (all when none given)", types.BucketUpdates),
		a.transactCmd("reinstall", "Reinstall installed packages", types.BucketReinstall),
		a.transactCmd("downgrade", "Downgrade packages to an older available version", types.BucketDowngrade),
		a.reposCmd(),
		a.advisoriesCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) setup() error {
	path := a.configPath
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return err
	}
	if explicit || fsutil.PathExists(path) {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.cfg = cfg
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}
	if a.archs != "" {
		a.cfg.ArchFilter = splitCSV(a.archs)
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	a.log = newLogger(a.io.Err, a.cfg.LogLevel)
	return nil
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).Level(lvl).With().Timestamp().Logger()
}

func (a *app) clientConfig() dnfdaemon.ClientConfig {
	return dnfdaemon.ClientConfig{
		CallTimeout:     a.cfg.CallTimeout(),
		WatchdogTimeout: a.cfg.Watchdog(),
		TransactionIdle: a.cfg.TransactionIdle(),
		PipePoll:        a.cfg.PipePoll(),
		PipeMaxWait:     a.cfg.PipeMaxWait(),
		Sink:            &stderrSink{w: a.io.Err},
		Logger:          &a.log,
	}
}

// open dials the daemon and builds the cache and coordinator over it.
func (a *app) open(ctx context.Context) (*env, error) {
	d, err := a.dial(ctx, a.clientConfig())
	if err != nil {
		return nil, err
	}
	var groups pkgcache.GroupLookup
	if a.cfg.GroupTaxonomy != "" {
		path, err := fsutil.ExpandHome(a.cfg.GroupTaxonomy)
		if err != nil {
			_ = d.Close(ctx)
			return nil, err
		}
		tax, err := pkgcache.LoadTaxonomy(path)
		if err != nil {
			_ = d.Close(ctx)
			return nil, fmt.Errorf("load group taxonomy: %w", err)
		}
		groups = tax.Lookup
	}
	var filters []pkgcache.Filter
	if len(a.cfg.ArchFilter) > 0 {
		filters = append(filters, pkgcache.ArchFilter(a.cfg.ArchFilter...))
	}
	cache := pkgcache.New(pkgcache.Config{Fetcher: d, Filters: filters, Groups: groups, Logger: &a.log})
	coord := transaction.New(transaction.Config{
		Backend:       d,
		Confirmer:     &promptConfirmer{in: a.io.In, out: a.io.Out, assumeYes: a.assumeYes},
		Cache:         cache,
		MaxKeyImports: a.cfg.MaxKeyImports,
		Logger:        &a.log,
	})
	return &env{daemon: d, cache: cache, coord: coord}, nil
}

// withEnv runs fn against a freshly opened session and always closes it.
func (a *app) withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.daemon.Close(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn().Str("event", "session_close_failed").Err(err).Msg("closing daemon session")
		}
	}()
	return fn(ctx, e)
}

// Execute runs the command tree with process streams and returns the
// exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd(IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}, nil)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "yumex:", err)
		return 1
	}
	return 0
}
