package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hydromet/datanode/internal/pki"
	"github.com/spf13/cobra"
)

func installKeygenCmd(app *App) {
	var outPrefix string

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a producer signing key pair",
		Long: `Generate an RSA key pair for signing uploads.

The private key stays with the producer and its path goes into the producer
configuration. The public key must be registered with the distribution node
operator before uploads are accepted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return keygenRun(outPrefix)
		},
	}

	keygenCmd.Flags().StringVarP(&outPrefix, "output", "o", "datanode_key", "path prefix for the generated key pair files")

	app.cmd.AddCommand(keygenCmd)
}

func keygenRun(outPrefix string) error {
	publicKey, privateKey, err := pki.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %v", err)
	}

	privatePath := outPrefix + ".pem"
	publicPath := outPrefix + "_pub.pem"

	if err := os.WriteFile(privatePath, privateKey, 0600); err != nil {
		return fmt.Errorf("failed to write private key: %v", err)
	}
	if err := os.WriteFile(publicPath, publicKey, 0644); err != nil {
		return fmt.Errorf("failed to write public key: %v", err)
	}

	slog.Info("Generated key pair", "private", privatePath, "public", publicPath)
	fmt.Printf("%s\n%s\n", privatePath, publicPath)
	return nil
}
