package store

import (
	"context"

	"github.com/gobeaver/filegate"
)

func init() {
	filegate.RegisterStore("memory", func(*filegate.Config) (filegate.RecordStore, error) {
		return NewMemory(), nil
	})
	filegate.RegisterStore("sqlite", func(cfg *filegate.Config) (filegate.RecordStore, error) {
		return Open(context.Background(), SQLite, cfg.StoreDSN)
	})
	filegate.RegisterStore("postgres", func(cfg *filegate.Config) (filegate.RecordStore, error) {
		return Open(context.Background(), Postgres, cfg.StoreDSN)
	})
}
