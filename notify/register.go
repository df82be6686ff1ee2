package notify

import (
	"log/slog"

	"github.com/gobeaver/filegate"
)

func init() {
	filegate.RegisterNotifier("log", func(*filegate.Config) (filegate.Notifier, error) {
		return NewLog(slog.Default()), nil
	})
	filegate.RegisterNotifier("redis", func(cfg *filegate.Config) (filegate.Notifier, error) {
		return DialRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisChannel), nil
	})
}
