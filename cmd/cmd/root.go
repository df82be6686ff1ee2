package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobeaver/filegate"
	_ "github.com/gobeaver/filegate/driver/local"
	_ "github.com/gobeaver/filegate/driver/memory"
	_ "github.com/gobeaver/filegate/driver/s3"
	"github.com/gobeaver/filegate/internal/logging"
	"github.com/gobeaver/filegate/internal/telemetry"
	_ "github.com/gobeaver/filegate/notify"
	_ "github.com/gobeaver/filegate/store"
)

const AppName = "filegate"

// Version is set at build time
var Version = "dev"

func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         AppName + " - admission gate for untrusted uploads",
		Version:       Version,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("env-prefix", "", "environment variable prefix (default BEAVER_)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: DEBUG, INFO, WARN, ERROR (overrides FILEGATE_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json (overrides FILEGATE_LOG_FORMAT)")

	rootCmd.AddCommand(DefineValidateCommand())
	rootCmd.AddCommand(DefineAdmitCommand())
	rootCmd.AddCommand(DefineWatchCommand())
	rootCmd.AddCommand(DefineSignaturesCommand())

	return rootCmd
}

// loadConfig reads configuration from the environment and applies the
// persistent flag overrides
func loadConfig(cmd *cobra.Command) (*filegate.Config, error) {
	prefix, _ := cmd.Flags().GetString("env-prefix")

	var (
		cfg *filegate.Config
		err error
	)
	if prefix != "" {
		cfg, err = filegate.WithPrefix(prefix).Config()
	} else {
		cfg, err = filegate.GetConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.LogFormat = format
	}
	return cfg, nil
}

// openService opens the configured gate with tracing and metrics
// middlewares. The returned cleanup closes the service and flushes
// telemetry.
func openService(ctx context.Context, cmd *cobra.Command) (*filegate.Service, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    AppName,
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, nil, err
	}

	var opts []filegate.GateOption
	if tel.Enabled() {
		opts = append(opts, filegate.WithMiddleware(
			filegate.Tracing(tel.Tracer),
			filegate.Metrics(tel.Meter),
		))
	}

	svc, err := filegate.Open(cfg, opts...)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		if err := svc.Close(); err != nil {
			slog.Warn("failed to close service", "error", err)
		}
		if err := tel.Shutdown(context.Background()); err != nil {
			slog.Warn("failed to flush telemetry", "error", err)
		}
	}
	return svc, cleanup, nil
}
