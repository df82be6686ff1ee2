package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobeaver/filegate"
	"github.com/gobeaver/filegate/filevalidator"
)

type fileReport struct {
	Path     string                          `json:"path"`
	Checksum string                          `json:"checksum,omitempty"`
	Result   *filevalidator.ValidationResult `json:"result"`
}

func DefineValidateCommand() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:          "validate <file>...",
		Short:        "Validate local files without admitting them",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE:         runValidate,
	}

	validateCmd.Flags().StringP("type", "t", "", "declared content type (default: derived from the extension)")
	validateCmd.Flags().Bool("json", false, "print results as JSON")
	validateCmd.Flags().String("checksum", "", "also print a checksum: md5, sha256, sha512, crc32 or xxhash")

	return validateCmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	declared, _ := cmd.Flags().GetString("type")
	asJSON, _ := cmd.Flags().GetBool("json")
	algorithm, _ := cmd.Flags().GetString("checksum")

	validator, err := filegate.NewValidator(cfg)
	if err != nil {
		return err
	}

	reports := make([]fileReport, 0, len(args))
	invalid := 0
	for _, path := range args {
		result := validator.ValidateFile(cmd.Context(), path, declared)
		report := fileReport{Path: path, Result: result}
		if !result.IsValid {
			invalid++
		}

		if algorithm != "" && result.Size > 0 {
			sum, err := fileChecksum(path, filegate.ChecksumAlgorithm(algorithm))
			if err != nil {
				return err
			}
			report.Checksum = sum
		}
		reports = append(reports, report)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			fmt.Fprintf(out, "%s: %s\n", r.Path, r.Result.Summary())
			for _, e := range r.Result.Errors {
				fmt.Fprintf(out, "  error: %s\n", e)
			}
			for _, w := range r.Result.Warnings {
				fmt.Fprintf(out, "  warning: %s\n", w)
			}
			if r.Checksum != "" {
				fmt.Fprintf(out, "  %s: %s\n", algorithm, r.Checksum)
			}
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d files rejected", invalid, len(args))
	}
	return nil
}

func fileChecksum(path string, algorithm filegate.ChecksumAlgorithm) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return filegate.CalculateChecksum(f, algorithm)
}
