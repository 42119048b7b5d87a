// File: cmd/capture.go
package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/dlsmap/internal/config"
	"github.com/xkilldash9x/dlsmap/internal/observability"
	"github.com/xkilldash9x/dlsmap/internal/orchestrator"
)

// osWriteFile is swapped out in tests.
var osWriteFile = os.WriteFile

func newCaptureCmd() *cobra.Command {
	var (
		fields  map[string]string
		outPath string
		asJSON  bool
	)

	captureCmd := &cobra.Command{
		Use:   "capture",
		Short: "Run one form submission and save the map screenshot",
		Example: `  dlsmap capture --field governorate="محافظة العاصمة" --field basin=123 --out parcel.png
  dlsmap capture --field basin=123 --json`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			known := make(map[string]bool, len(config.FieldKeys))
			for _, k := range config.FieldKeys {
				known[k] = true
			}
			for k := range fields {
				if !known[k] {
					return fmt.Errorf("unknown field %q (expected one of %s)", k, strings.Join(config.FieldKeys, ", "))
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			defer observability.Sync()

			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			sub, err := newSubmitter(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize submitter: %w", err)
			}

			set := make(orchestrator.FieldSet, len(fields))
			for k, v := range fields {
				set[k] = v
			}
			res, err := sub.Submit(ctx, set)
			if err != nil {
				return fmt.Errorf("capture failed (%s): %w", orchestrator.Stage(err), err)
			}

			png, err := base64.StdEncoding.DecodeString(res.Screenshot)
			if err != nil {
				return fmt.Errorf("decoding screenshot: %w", err)
			}
			if err := osWriteFile(outPath, png, 0o644); err != nil {
				return fmt.Errorf("writing screenshot to %s: %w", outPath, err)
			}
			logger.Info("Screenshot saved.", zap.String("path", outPath), zap.Int("bytes", len(png)))

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res.FieldResults)
			}
			for _, r := range res.FieldResults {
				line := fmt.Sprintf("%-12s %-8s %s", r.Field, r.Status, r.Value)
				if r.Error != "" {
					line += " (" + r.Error + ")"
				}
				fmt.Fprintln(out, strings.TrimRight(line, " "))
			}
			fmt.Fprintf(out, "%s\nscreenshot: %s\n", res.Message, outPath)
			return nil
		},
	}

	captureCmd.Flags().StringToStringVarP(&fields, "field", "f", nil, "form field as key=value; repeatable")
	captureCmd.Flags().StringVarP(&outPath, "out", "o", "dls.png", "where to write the PNG screenshot")
	captureCmd.Flags().BoolVar(&asJSON, "json", false, "print per-field results as JSON")
	return captureCmd
}
