// Package uploader implements the producer side of the exchange: it signs
// observation documents with the producer's private key and sends them to a
// distribution node.
package uploader

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hydromet/datanode/internal/selector"
)

// ErrSendFailure is returned when a document fails to reach the node, either
// due to a network error or a non-200 status code.
var ErrSendFailure = errors.New("document send failed")

// Config is the producer configuration, loaded from a TOML file.
type Config struct {
	KeyID          string `toml:"keyId"`
	PrivateKeyPath string `toml:"privateKeyPath"`
	NodeURL        string `toml:"nodeURL"`
	Format         string `toml:"format"`
	Type           string `toml:"type"`
}

// LoadConfig reads and validates a producer configuration file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration file %s: %v", path, err)
	}

	if cfg.KeyID == "" {
		return Config{}, errors.New("keyId must be set")
	}
	if cfg.PrivateKeyPath == "" {
		return Config{}, errors.New("privateKeyPath must be set")
	}
	if cfg.NodeURL == "" {
		return Config{}, errors.New("nodeURL must be set")
	}
	if cfg.Format == "" {
		return Config{}, errors.New("format must be set")
	}
	if _, err := selector.ParsePointType(cfg.Type); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Manager holds everything needed to sign and send observation documents.
type Manager struct {
	keyID      string
	privateKey []byte
	uploadURL  string

	baseRetryPeriod time.Duration
	maxRetryPeriod  time.Duration
	maxAttempts     uint32
	responseTimeout time.Duration
}

type options struct {
	// Private members exported for tests.
	baseRetryPeriod time.Duration
	maxRetryPeriod  time.Duration
	maxAttempts     uint32
	responseTimeout time.Duration
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New returns a Manager ready to upload documents described by cfg.
func New(cfg Config, args ...Options) (Manager, error) {
	key, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return Manager{}, fmt.Errorf("failed to read private key %s: %v", cfg.PrivateKeyPath, err)
	}

	uploadURL, err := buildUploadURL(cfg)
	if err != nil {
		return Manager{}, err
	}

	opts := options{
		baseRetryPeriod: 30 * time.Second,
		maxRetryPeriod:  30 * time.Minute,
		maxAttempts:     8,
		responseTimeout: 30 * time.Second,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return Manager{
		keyID:      cfg.KeyID,
		privateKey: key,
		uploadURL:  uploadURL,

		baseRetryPeriod: opts.baseRetryPeriod,
		maxRetryPeriod:  opts.maxRetryPeriod,
		maxAttempts:     opts.maxAttempts,
		responseTimeout: opts.responseTimeout,
	}, nil
}

func buildUploadURL(cfg Config) (string, error) {
	u, err := url.Parse(cfg.NodeURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse node URL %s: %v", cfg.NodeURL, err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/upload"
	}

	q := u.Query()
	q.Set("type", cfg.Type)
	q.Set("format", cfg.Format)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
