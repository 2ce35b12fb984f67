package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and validation of channel configurations
type Loader struct {
	channelsDir string
}

// NewLoader creates a new configuration loader
func NewLoader(channelsDir string) *Loader {
	return &Loader{channelsDir: channelsDir}
}

// LoadAll loads all YAML configuration files from the channels directory
func (l *Loader) LoadAll() (map[string]*ChannelConfig, error) {
	configs := make(map[string]*ChannelConfig)

	// Check if channels directory exists
	if _, err := os.Stat(l.channelsDir); os.IsNotExist(err) {
		return configs, nil // Return empty map if directory doesn't exist
	}

	files, err := filepath.Glob(filepath.Join(l.channelsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	// Also check for .yml extension
	ymlFiles, err := filepath.Glob(filepath.Join(l.channelsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	for _, file := range files {
		config, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(config); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", file, err)
		}

		configs[file] = config
		log.Printf("Loaded configuration from %s", file)
	}

	return configs, nil
}

// loadFile loads a single YAML configuration file
func (l *Loader) loadFile(path string) (*ChannelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config ChannelConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Set defaults
	l.setDefaults(&config)

	return &config, nil
}

// setDefaults applies default values to configuration
func (l *Loader) setDefaults(config *ChannelConfig) {
	if config.Settings.CheckInterval == 0 {
		config.Settings.CheckInterval = 15 // minutes
	}
	if config.Channel.URL == "" && config.Channel.ID != "" {
		config.Channel.URL = "https://www.youtube.com/channel/" + config.Channel.ID
	}
}

// validate validates the configuration
func (l *Loader) validate(config *ChannelConfig) error {
	if config.Channel.ID == "" {
		return fmt.Errorf("channel id is required")
	}
	if !strings.HasPrefix(config.Channel.ID, "UC") {
		return fmt.Errorf("channel id must be a canonical channel ID starting with UC")
	}
	if config.Channel.Name == "" {
		return fmt.Errorf("channel name is required")
	}
	if config.Settings.CheckInterval < 0 {
		return fmt.Errorf("check interval must be non-negative")
	}

	return nil
}
