// Package config provides the runtime configuration of the distribution
// node: the declared input formats and the property symbol conversion
// tables, loaded from a JSON file and reloaded on change.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hydromet/datanode/internal/formats"
	"github.com/hydromet/datanode/internal/xmlresolver"
)

// FormatDefinition is one declared input format: the anchor path of its
// repeating observation fragment and the built parameter configuration.
type FormatDefinition struct {
	Anchor     []string
	Parameters *formats.Config
}

// conf mirrors the JSON configuration file.
type conf struct {
	Formats map[string]struct {
		Anchor     []string         `json:"anchor"`
		Parameters []map[string]any `json:"parameters"`
	} `json:"formats"`
	SymbolMappings xmlresolver.SymbolMappings `json:"symbolMappings"`
}

// Manager loads and watches the node configuration file. Reads are safe for
// concurrent use with reloads.
type Manager struct {
	lock       sync.RWMutex
	formats    map[string]FormatDefinition
	symbols    xmlresolver.SymbolMappings
	configPath string

	log *slog.Logger
}

type options struct {
	Logger *slog.Logger
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New creates a new configuration manager with the specified path.
func New(path string, args ...Options) *Manager {
	opts := options{
		Logger: slog.Default(),
	}

	for _, opt := range args {
		opt(&opts)
	}

	return &Manager{
		configPath: path,
		log:        opts.Logger,
	}
}

// Load reads the configuration from the specified file, builds every format
// definition and updates the internal state. A file with an invalid format
// definition is rejected as a whole.
func (cm *Manager) Load() error {
	file, err := os.Open(cm.configPath)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer file.Close()

	var newConfig conf
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&newConfig); err != nil {
		return fmt.Errorf("decoding config JSON: %w", err)
	}

	built := make(map[string]FormatDefinition, len(newConfig.Formats))
	for name, def := range newConfig.Formats {
		parameters, err := formats.NewConfig(def.Parameters)
		if err != nil {
			return fmt.Errorf("format %q: %w", name, err)
		}
		built[name] = FormatDefinition{Anchor: def.Anchor, Parameters: parameters}
	}

	cm.lock.Lock()
	cm.formats = built
	cm.symbols = newConfig.SymbolMappings
	cm.lock.Unlock()

	cm.log.Info("Configuration loaded", "formats", len(built))
	return nil
}

// Format returns the named format definition.
func (cm *Manager) Format(name string) (FormatDefinition, bool) {
	cm.lock.RLock()
	defer cm.lock.RUnlock()

	def, ok := cm.formats[name]
	return def, ok
}

// SymbolMappings returns the current symbol conversion tables.
func (cm *Manager) SymbolMappings() xmlresolver.SymbolMappings {
	cm.lock.RLock()
	defer cm.lock.RUnlock()

	return cm.symbols
}

// Watch starts watching the configuration file for changes.
//
// It returns two channels: one for configuration changes which result in a
// successful load and another for unrecoverable watcher errors.
func (cm *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errors <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	configDir, _ := filepath.Split(cm.configPath)
	if configDir == "" {
		configDir = "."
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", configDir, err)
	}

	cm.log.Info("Watching configuration directory", "dir", configDir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	// Initial load of the configuration
	if err := cm.Load(); err != nil {
		cm.log.Warn("Error loading initial config", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				cm.log.Info("Configuration watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(cm.configPath) {
					continue
				}
				if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}

				if err := cm.Load(); err != nil {
					cm.log.Warn("Failed to reload configuration", "err", err)
					continue
				}
				select {
				case changesCh <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				cm.log.Warn("Configuration watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}
