package cmd

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/gobeaver/filegate"
)

func DefineAdmitCommand() *cobra.Command {
	admitCmd := &cobra.Command{
		Use:          "admit <key>...",
		Short:        "Admit uploads from the incoming bucket",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE:         runAdmit,
	}

	admitCmd.Flags().StringP("bucket", "b", "", "source bucket (default: FILEGATE_INCOMING_BUCKET)")
	admitCmd.Flags().String("category", "", "document category recorded with each upload")
	admitCmd.Flags().IntP("concurrency", "c", 0, "admissions in flight (default: FILEGATE_ADMIT_CONCURRENCY)")

	return admitCmd
}

func runAdmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	svc, cleanup, err := openService(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	bucket, _ := cmd.Flags().GetString("bucket")
	if bucket == "" {
		bucket = svc.Config.IncomingBucket
	}
	category, _ := cmd.Flags().GetString("category")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency <= 0 {
		concurrency = svc.Config.AdmitConcurrency
	}

	uploads := make([]filegate.Upload, len(args))
	for i, key := range args {
		uploads[i] = filegate.Upload{
			Bucket:           bucket,
			Key:              key,
			OriginalFilename: path.Base(key),
			DocumentCategory: category,
		}
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range svc.Gate.AdmitBatch(ctx, uploads, concurrency) {
		if r.Decision == nil {
			failed++
			fmt.Fprintf(out, "%s: %v\n", r.Upload.Key, r.Err)
			continue
		}
		d := r.Decision
		fmt.Fprintf(out, "%s: %s -> %s (upload %s)\n", r.Upload.Key, d.Status, d.Location, d.UploadID)
		if d.DuplicateOf != "" {
			fmt.Fprintf(out, "  duplicate of %s\n", d.DuplicateOf)
		}
		for _, e := range d.Result.Errors {
			fmt.Fprintf(out, "  error: %s\n", e)
		}
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "  incomplete: %v\n", r.Err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d admissions incomplete", failed, len(uploads))
	}
	return nil
}
