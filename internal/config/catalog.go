package config

import (
	"os"
	"strconv"
)

const (
	EnvCatalogPath  = "CATALOG_PATH"
	EnvCatalogWatch = "CATALOG_WATCH"
)

// CatalogConfig points at an optional YAML agent catalog. When Path is set
// the registry is served from the file instead of the database.
type CatalogConfig struct {
	Path  string `toml:"path"`
	Watch bool   `toml:"watch"`
}

func (c *CatalogConfig) Finalize() error {
	if v := os.Getenv(EnvCatalogPath); v != "" {
		c.Path = v
	}
	if v := os.Getenv(EnvCatalogWatch); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch = b
		}
	}
	return nil
}

func (c *CatalogConfig) Merge(overlay *CatalogConfig) {
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.Watch {
		c.Watch = true
	}
}
