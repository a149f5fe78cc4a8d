package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/workboard/internal/adapters/remote/pgstore"
	"github.com/evanschultz/workboard/internal/adapters/remote/redisstore"
	serveradapter "github.com/evanschultz/workboard/internal/adapters/server"
	servercommon "github.com/evanschultz/workboard/internal/adapters/server/common"
	"github.com/evanschultz/workboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/workboard/internal/app"
	"github.com/evanschultz/workboard/internal/config"
	"github.com/evanschultz/workboard/internal/platform"
)

// version is stamped at build time.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// program is the part of a bubbletea program the board command needs.
type program interface {
	Run() (tea.Model, error)
}

// programFactory builds the board program; tests replace it.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// clock feeds the session; tests pin it.
var clock = time.Now

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run executes one CLI invocation.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	verbose    bool
	stderr     io.Writer
}

func newRootCommand(stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("WORKBOARD_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("WORKBOARD_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:   "workboard",
		Short: "A daily task board that carries unfinished work into today",
		Long: `workboard keeps one board per day. Unfinished tasks from earlier days are
carried into today, and every change is mirrored to a shared remote when one
is configured, falling back to the local store when it is not reachable.`,
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.BoolVar(&opts.verbose, "verbose", false, "log runtime events to stderr")

	root.AddCommand(
		pathsCmd(opts),
		showCmd(opts),
		addCmd(opts),
		moveCmd(opts),
		editCmd(opts),
		priorityCmd(opts),
		reorderCmd(opts),
		rmCmd(opts),
		activityCmd(opts),
		standupCmd(opts),
		serveCmd(opts),
		boardCmd(opts),
	)
	return root
}

// runtime bundles the resources one command needs.
type runtime struct {
	cfg     config.Config
	paths   platform.Paths
	logger  *runtimeLogger
	session *app.Session
	board   *servercommon.SessionAdapter
	timeout time.Duration
	closers []func() error
}

func (o *rootOptions) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// openRuntime loads config, opens stores and loads the board.
func (o *rootOptions) openRuntime(ctx context.Context, command string) (*runtime, error) {
	paths, err := o.resolvePaths()
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnvFiles(paths.EnvPath, ".env"); err != nil {
		return nil, err
	}

	configPath := o.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("WORKBOARD_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("WORKBOARD_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	cfg, err = cfg.ApplyEnv(os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	logger, err := newRuntimeLogger(o.stderr, o.appName, o.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.SetConsoleEnabled(o.verbose || command == "serve")
	rt := &runtime{cfg: cfg, paths: paths, logger: logger}
	rt.closers = append(rt.closers, logger.Close)

	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	fail := func(err error) (*runtime, error) {
		_ = rt.close(context.Background())
		return nil, err
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fail(fmt.Errorf("open sqlite repository: %w", err))
	}
	rt.closers = append(rt.closers, repo.Close)

	loc, err := cfg.Location()
	if err != nil {
		return fail(err)
	}
	timeout, err := cfg.RemoteTimeout()
	if err != nil {
		return fail(err)
	}
	rt.timeout = timeout
	if rt.timeout <= 0 {
		rt.timeout = app.DefaultRemoteTimeout
	}
	remote, closeRemote, err := openRemote(ctx, cfg, timeout, logger)
	if err != nil {
		return fail(err)
	}
	rt.closers = append(rt.closers, closeRemote)

	rt.session = app.NewSession(repo, remote, uuid.NewString, clock, app.SessionConfig{
		Location:      loc,
		RemoteTimeout: timeout,
		Logger:        logger,
	})
	rt.board = servercommon.NewSessionAdapter(rt.session)
	if err := rt.session.Reload(ctx); err != nil {
		return fail(fmt.Errorf("load board: %w", err))
	}
	logger.Info("board loaded", "mode", rt.session.Mode(), "today", rt.session.TodayKey(), "remote", cfg.Remote.Backend)
	return rt, nil
}

// close flushes pending remote writes and releases stores in reverse order.
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	if rt.session != nil {
		if err := rt.session.Flush(ctx); err != nil && !errors.Is(err, app.ErrClosed) {
			errs = append(errs, fmt.Errorf("flush remote writes: %w", err))
		}
		if err := rt.session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openRemote connects the configured remote backend. A nil remote means the
// board runs on the local store alone.
func openRemote(ctx context.Context, cfg config.Config, timeout time.Duration, logger *runtimeLogger) (app.Remote, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Remote.Backend {
	case config.RemoteRedis:
		store := redisstore.Open(redisstore.Options{
			Addr:     cfg.Remote.Redis.Addr,
			Password: cfg.Remote.Redis.Password,
			DB:       cfg.Remote.Redis.DB,
			Prefix:   cfg.Remote.Redis.Prefix,
		})
		logger.Info("redis remote configured", "addr", cfg.Remote.Redis.Addr, "prefix", cfg.Remote.Redis.Prefix)
		return store, store.Close, nil
	case config.RemotePostgres:
		store, err := pgstore.Open(cfg.Remote.Postgres.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres remote: %w", err)
		}
		migrateCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := store.Migrate(migrateCtx); err != nil {
			// The session falls back to the local store when the remote stays unreachable.
			logger.Warn("postgres migrate failed", "err", err)
		}
		logger.Info("postgres remote configured")
		return store, store.Close, nil
	default:
		return nil, noop, nil
	}
}

// withRuntime opens the runtime for one command and always closes it.
func (o *rootOptions) withRuntime(cmd *cobra.Command, fn func(context.Context, *runtime) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := o.openRuntime(ctx, cmd.Name())
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), rt.timeout)
		defer cancel()
		if closeErr := rt.close(closeCtx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	rt.logger.Info("command flow start", "command", cmd.Name())
	if err := fn(ctx, rt); err != nil {
		rt.logger.Error("command flow failed", "command", cmd.Name(), "err", err)
		return err
	}
	rt.logger.Info("command flow complete", "command", cmd.Name())
	return nil
}

// parseBoolEnv reads one boolean environment variable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
