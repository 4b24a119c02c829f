package project

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

// LoadFile reads a TOML project configuration document from path,
// unmarshals it into the generic map[string]any shape Decode expects,
// and runs it through Decode's strict validation pass.
func LoadFile(path string) (*ProjectConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, bundleerr.NewIOError("read project config", path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, bundleerr.NewConfigError("", err)
	}

	return Decode(doc)
}
