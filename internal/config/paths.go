package config

import (
	"fmt"
	"os"

	gap "github.com/muesli/go-app-paths"
)

// DataPath returns the directory holding the bookmark cache database and
// config.yml. COSMICDING_HOME overrides the per-user data directory, which
// keeps separate caches apart.
func DataPath() (string, error) {
	if p := os.Getenv(App.Env.Home); p != "" {
		return p, nil
	}

	p, err := gap.NewScope(gap.User, appName).DataPath("")
	if err != nil {
		return "", fmt.Errorf("resolving data dir: %w", err)
	}

	return p, nil
}
