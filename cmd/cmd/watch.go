package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gobeaver/filegate"
)

func DefineWatchCommand() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:          "watch",
		Short:        "Admit every new upload in the incoming bucket until interrupted",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runWatch,
	}

	watchCmd.Flags().StringP("pattern", "p", "*", "glob selecting uploads")
	watchCmd.Flags().String("category", "", "document category recorded with each upload")

	return watchCmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := openService(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	pattern, _ := cmd.Flags().GetString("pattern")
	category, _ := cmd.Flags().GetString("category")

	inbox, err := svc.Inbox(
		filegate.WithInboxPattern(pattern),
		filegate.WithDocumentCategory(category),
	)
	if err != nil {
		return err
	}

	slog.Info("watching incoming bucket", "bucket", svc.Config.IncomingBucket, "pattern", pattern)
	if err := inbox.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	if ctx.Err() == context.Canceled {
		slog.Info("stopped")
	}
	return nil
}
