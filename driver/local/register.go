package local

import (
	"path/filepath"

	"github.com/gobeaver/filegate"
)

// Each bucket is a directory below the configured base path.
func init() {
	filegate.RegisterDriver("local", func(cfg *filegate.Config, bucket string) (filegate.FileSystem, error) {
		return New(filepath.Join(cfg.LocalBasePath, bucket))
	})
}
