// Package daemon provides the distribution node daemon.
package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hydromet/datanode/common/cli"
	"github.com/hydromet/datanode/internal/config"
	"github.com/hydromet/datanode/internal/constants"
	"github.com/hydromet/datanode/internal/database"
	"github.com/hydromet/datanode/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig

	daemon *server.Server

	ready chan struct{}
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int
	JSONLogs  bool
	Daemon    server.StaticConfig
	DB        database.Config
}

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{ready: make(chan struct{})}

	a.cmd = &cobra.Command{
		Use:           constants.DataNodeCmdName,
		Short:         "Environmental observation distribution node",
		Long:          "Distribution node accepting signed observation uploads from data producers and serving scoped downloads to data consumers.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetVerbosity(a.config.Verbosity) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.DataNodeCmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cmd.SilenceUsage = true

			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	defaultConf := server.StaticConfig{
		ConfigPath: "",

		ReadTimeout:    5 * time.Second,
		WriteTimeout:   30 * time.Second,
		RequestTimeout: 25 * time.Second,
		MaxHeaderBytes: 1 << 13, // 8 KB
		MaxUploadBytes: 1 << 22, // 4 MB

		RateLimitPerSecond: 5,
		RateBurst:          10,

		GenerationSystem: constants.DataNodeCmdName,

		ListenPort: 8080,
	}

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "emit logs as JSON lines")

	// Daemon flags
	cmd.Flags().StringVar(&app.config.Daemon.ConfigPath, "daemon-config", defaultConf.ConfigPath, "path to the node configuration file with format and symbol declarations")

	cmd.Flags().DurationVar(&app.config.Daemon.ReadTimeout, "read-timeout", defaultConf.ReadTimeout, "read timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.WriteTimeout, "write-timeout", defaultConf.WriteTimeout, "write timeout for HTTP server")
	cmd.Flags().DurationVar(&app.config.Daemon.RequestTimeout, "request-timeout", defaultConf.RequestTimeout, "request timeout for HTTP server")
	cmd.Flags().IntVar(&app.config.Daemon.MaxHeaderBytes, "max-header-bytes", defaultConf.MaxHeaderBytes, "maximum header bytes for HTTP server")
	cmd.Flags().IntVar(&app.config.Daemon.MaxUploadBytes, "max-upload-bytes", defaultConf.MaxUploadBytes, "maximum upload bytes for HTTP server")

	cmd.Flags().Float64Var(&app.config.Daemon.RateLimitPerSecond, "rate-limit", defaultConf.RateLimitPerSecond, "per-IP request rate limit")
	cmd.Flags().IntVar(&app.config.Daemon.RateBurst, "rate-burst", defaultConf.RateBurst, "per-IP request burst allowance")

	cmd.Flags().StringVar(&app.config.Daemon.GenerationSystem, "generation-system", defaultConf.GenerationSystem, "system name reported in generated output documents")

	cmd.Flags().StringVar(&app.config.Daemon.ListenHost, "listen-host", defaultConf.ListenHost, "host to listen on")
	cmd.Flags().IntVar(&app.config.Daemon.ListenPort, "listen-port", defaultConf.ListenPort, "port to listen on")

	// Database flags
	cmd.Flags().StringVar(&app.config.DB.Host, "db-host", "", "database host")
	cmd.Flags().IntVarP(&app.config.DB.Port, "db-port", "p", 5432, "database port")
	cmd.Flags().StringVarP(&app.config.DB.User, "db-user", "u", "", "database user")
	cmd.Flags().StringVarP(&app.config.DB.Password, "db-password", "P", "", "database password")
	cmd.Flags().StringVarP(&app.config.DB.DBName, "db-name", "n", "", "database name")
	cmd.Flags().StringVarP(&app.config.DB.SSLMode, "db-sslmode", "s", "", "database SSL mode")

	err := cmd.MarkFlagFilename("daemon-config")
	if err != nil {
		// This should never happen.
		panic(fmt.Sprintf("failed to mark daemon-config flag as filename: %v", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down the daemon.
func (a *App) Quit() {
	a.WaitReady()
	if a.daemon != nil {
		a.daemon.Quit(false)
	}
}

// WaitReady waits for the daemon to be ready.
func (a *App) WaitReady() {
	<-a.ready
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) run() (err error) {
	a.config.Daemon.ConfigPath, err = filepath.Abs(a.config.Daemon.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for config file: %v", err)
	}

	ctx := context.Background()
	db, err := database.New(ctx, a.config.DB)
	if err != nil {
		close(a.ready)
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer db.Close()

	cm := config.New(a.config.Daemon.ConfigPath)
	a.daemon, err = server.New(ctx, cm, db, a.config.Daemon)
	close(a.ready)
	if err != nil {
		return fmt.Errorf("failed to create server: %v", err)
	}

	return a.daemon.Run()
}
