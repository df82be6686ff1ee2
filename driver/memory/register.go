package memory

import "github.com/gobeaver/filegate"

func init() {
	filegate.RegisterDriver("memory", func(cfg *filegate.Config, bucket string) (filegate.FileSystem, error) {
		return New(), nil
	})
}
