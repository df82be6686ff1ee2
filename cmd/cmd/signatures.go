package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobeaver/filegate/filevalidator"
)

func DefineSignaturesCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "signatures <file>",
		Short:        "Check a YAML threat signature file and list its entries",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sigs, err := filevalidator.LoadSignaturesFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range sigs {
				fmt.Fprintf(out, "%s (%d bytes)\n", s.Name, len(s.Pattern))
			}
			fmt.Fprintf(out, "%d signatures\n", len(sigs))
			return nil
		},
	}
}
