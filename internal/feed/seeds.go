package feed

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSeeds reads the list of feeds to register at startup. A missing file
// is not an error and yields no seeds.
func LoadSeeds(path string) ([]Seed, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("Seed file not found, skipping", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]bool, len(file.Feeds))
	seeds := make([]Seed, 0, len(file.Feeds))
	for i, seed := range file.Feeds {
		if err := ValidateURL(seed.URL); err != nil {
			return nil, fmt.Errorf("invalid feed at index %d: %w", i, err)
		}
		if seen[seed.URL] {
			continue
		}
		seen[seed.URL] = true
		seeds = append(seeds, seed)
	}

	return seeds, nil
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("feed URL is required")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("feed URL %q is not valid: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("feed URL %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("feed URL %q has no host", raw)
	}

	return nil
}
