package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/hydromet/datanode/internal/uploader"
	"github.com/spf13/cobra"
)

func installUploadCmd(app *App) {
	uploadCmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Sign observation documents and upload them to the distribution node",
		Long: `Sign observation documents and upload them to the distribution node.

Each file is signed with the producer's private key and sent as-is. The node
resolves the document with the format declared in the producer configuration.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.config.Upload.Files = args

			slog.Info("Running upload command")
			return app.uploadRun(cmd)
		},
	}

	uploadCmd.Flags().BoolVarP(&app.config.Upload.Retry, "retry", "r", false, "enable a limited number of retries for failed uploads")

	app.cmd.AddCommand(uploadCmd)
}

// uploadRun runs the upload command.
func (a App) uploadRun(cmd *cobra.Command) error {
	cfg, err := uploader.LoadConfig(a.config.ProducerConf)
	if err != nil {
		return err
	}

	m, err := uploader.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create uploader: %v", err)
	}

	var uploadErr error
	for _, file := range a.config.Upload.Files {
		document, err := os.ReadFile(file)
		if err != nil {
			uploadErr = errors.Join(uploadErr, fmt.Errorf("failed to read %s: %v", file, err))
			continue
		}

		if a.config.Upload.Retry {
			err = m.BackoffUpload(cmd.Context(), document)
		} else {
			err = m.Upload(cmd.Context(), document)
		}
		if err != nil {
			uploadErr = errors.Join(uploadErr, fmt.Errorf("upload failed for %s: %w", file, err))
			continue
		}
		slog.Info("Uploaded document", "file", file)
	}

	return uploadErr
}
