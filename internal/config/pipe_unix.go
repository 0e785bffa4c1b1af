//go:build !windows

package config

import (
	"os"
	"path/filepath"
)

// defaultPipeName путь unix socket для gRPC
func defaultPipeName() string {
	return filepath.Join(os.TempDir(), "kikitori.sock")
}
