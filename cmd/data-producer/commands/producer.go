// Package commands implements the data producer command line interface: it
// signs observation documents with the producer's key and uploads them to a
// distribution node.
package commands

import (
	"fmt"

	"github.com/hydromet/datanode/common/cli"
	"github.com/hydromet/datanode/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd   *cobra.Command
	viper *viper.Viper

	config appConfig
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity    int
	ProducerConf string

	Upload struct {
		Files []string
		Retry bool
	}
}

// New registers commands and returns a new App.
func New() (*App, error) {
	a := App{}

	a.cmd = &cobra.Command{
		Use:           constants.DataProducerCmdName + " [COMMAND]",
		Short:         "Sign and upload observation documents to a distribution node",
		Long:          "Data producer tool that signs observation documents with the producer's private key and uploads them to a distribution node.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetVerbosity(a.config.Verbosity)
			if err := cli.InitViperConfig(constants.DataProducerCmdName, a.cmd, a.viper); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config); err != nil {
				return fmt.Errorf("unable to strictly decode configuration into struct: %w", err)
			}

			cli.SetVerbosity(a.config.Verbosity)
			return nil
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	a.cmd.PersistentFlags().CountVarP(&a.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	a.cmd.PersistentFlags().StringVar(&a.config.ProducerConf, "producer-config", "", "path to the producer TOML configuration file")
	cli.InstallConfigFlag(a.cmd)

	if err := a.cmd.MarkPersistentFlagFilename("producer-config"); err != nil {
		return nil, err
	}
	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}

	installUploadCmd(&a)
	installKeygenCmd(&a)
	a.installVersion()

	return &a, nil
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (a *App) installVersion() {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Returns the running version of " + constants.DataProducerCmdName + " and exits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s\t%s\n", constants.DataProducerCmdName, constants.Version)
			return nil
		},
	}
	a.cmd.AddCommand(cmd)
}
