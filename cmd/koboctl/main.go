package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"kobo/internal/backend"
	"kobo/internal/cli"
	"kobo/internal/config"
	"kobo/internal/core"
	klog "kobo/internal/log"
)

var version = "dev"

// app carries what every subcommand needs once the root has parsed its
// flags and read the config file.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "koboctl",
		Short: "Administer a kobo budget store",
		Long: `koboctl runs one-off operations against a kobo store: schema
migrations, period arithmetic, analytics reports, PIN management and
manual transaction entry.

Settings come from flags, KOBO_* environment variables, or a config file.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/kobo/config.yaml)")
	pf.String("log-level", "warn", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("backend", "", "data backend (memory, sqlite, postgres)")
	pf.String("sqlite-path", "", "SQLite database path")
	pf.String("database-url", "", "Postgres connection URL")
	pf.StringP("account", "a", "", "account to operate on")
	pf.StringP("output", "o", "text", "output format (text, json)")

	_ = a.v.BindPFlag("logging.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("backend", pf.Lookup("backend"))
	_ = a.v.BindPFlag("sqlite_path", pf.Lookup("sqlite-path"))
	_ = a.v.BindPFlag("database_url", pf.Lookup("database-url"))
	_ = a.v.BindPFlag("account", pf.Lookup("account"))
	_ = a.v.BindPFlag("output", pf.Lookup("output"))

	root.AddCommand(migrateCmd(a))
	root.AddCommand(periodCmd(a))
	root.AddCommand(reportCmd(a))
	root.AddCommand(pinCmd(a))
	root.AddCommand(txnCmd(a))
	root.AddCommand(versionCmd())

	return root
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(home + "/.config/kobo")
		}
		a.v.AddConfigPath(".")
		a.v.SetConfigName("kobo")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("KOBO")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	lvl, err := klog.ParseLevel(a.v.GetString("logging.level"))
	if err != nil {
		return err
	}
	// Logs go to stderr so report output stays pipeable.
	a.logger = klog.New(klog.Config{
		Level:     lvl,
		Format:    a.v.GetString("logging.format"),
		Component: klog.ComponentCLI,
		Output:    os.Stderr,
	}).Logger
	return nil
}

// appConfig layers the CLI settings over the environment defaults shared
// with the server.
func (a *app) appConfig() (*config.Config, error) {
	cfg := config.Load()
	if b := a.v.GetString("backend"); b != "" {
		cfg.DataBackend = b
	}
	if p := a.v.GetString("sqlite_path"); p != "" {
		cfg.SQLiteDBPath = p
	}
	if u := a.v.GetString("database_url"); u != "" {
		cfg.DatabaseURL = u
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the configured backend. Callers must run the returned
// close func.
func (a *app) openStore(ctx context.Context) (*backend.BackendResult, func(), error) {
	cfg, err := a.appConfig()
	if err != nil {
		return nil, nil, err
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(a.logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if res.Cleanup == nil {
			return
		}
		if err := res.Cleanup(); err != nil {
			a.logger.Warn("Backend cleanup error", "error", err)
		}
	}
	return res, closeFn, nil
}

func (a *app) account() (core.AccountID, error) {
	acct := core.AccountID(a.v.GetString("account"))
	if err := acct.Validate(); err != nil {
		return "", fmt.Errorf("%w: pass --account or set KOBO_ACCOUNT", err)
	}
	return acct, nil
}

func (a *app) jsonOutput() bool {
	return a.v.GetString("output") == "json"
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "koboctl %s\n", version)
		},
	}
}
