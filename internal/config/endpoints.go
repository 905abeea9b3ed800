package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kelsos/design-survey/internal/utils"
)

var (
	// ErrConfigNotFound is returned when no endpoint configuration file exists.
	ErrConfigNotFound = errors.New("configuration file not found")
	// ErrEndpointNotFound is returned when a requested endpoint label has no section.
	ErrEndpointNotFound = errors.New("endpoint not found in configuration")
)

// Endpoint is one model deployment the client may send requests to.
type Endpoint struct {
	Label      string `yaml:"-"`
	APIBase    string `yaml:"api_base"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`
	Deployment string `yaml:"engine"`
}

// EndpointFile is the on-disk layout of the endpoint configuration.
type EndpointFile struct {
	DefaultEndpoints []string            `yaml:"default_endpoints"`
	Endpoints        map[string]Endpoint `yaml:"endpoints"`
}

// ConfigSearchPaths lists where the endpoint file is looked up when no explicit path is given.
func ConfigSearchPaths() []string {
	paths := []string{filepath.Join("config", "config.yaml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".design-survey", "config.yaml"))
	}
	return paths
}

// FindConfigFile resolves the endpoint configuration path. An explicit path must exist.
func FindConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return explicit, nil
	}

	candidates := ConfigSearchPaths()
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w (looked in %s)", ErrConfigNotFound, strings.Join(candidates, ", "))
}

// LoadEndpoints reads the endpoint file and returns the endpoints for the given labels,
// or for default_endpoints when labels is empty.
func LoadEndpoints(path string, labels []string) ([]Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var file EndpointFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	if len(labels) == 0 {
		labels = file.DefaultEndpoints
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no endpoints selected and %s has no default_endpoints", path)
	}

	endpoints := make([]Endpoint, 0, len(labels))
	for _, label := range labels {
		endpoint, ok := file.Endpoints[label]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrEndpointNotFound, label)
		}
		endpoint.Label = label

		if endpoint.APIKey == "" {
			endpoint.APIKey = os.Getenv(utils.EnvName(label) + "_API_KEY")
		}

		if err := endpoint.Validate(); err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint)
	}

	return endpoints, nil
}

// Validate checks that the endpoint has everything needed to build a request.
func (e Endpoint) Validate() error {
	if e.APIBase == "" {
		return fmt.Errorf("endpoint %s: api_base cannot be empty", e.Label)
	}
	if e.APIVersion == "" {
		return fmt.Errorf("endpoint %s: api_version cannot be empty", e.Label)
	}
	if e.Deployment == "" {
		return fmt.Errorf("endpoint %s: engine cannot be empty", e.Label)
	}
	return nil
}
