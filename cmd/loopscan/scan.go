package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apperrors "loopscan/internal/errors"
)

func newScanCmd(flags *globalFlags) *cobra.Command {
	var mapPath string
	var output outputFlags

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run echo detection over a map without validation",
		Long: `Run echo detection over a JSON sky map and write the matches.

Example: loopscan scan --map planck_nside32.json --format markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close()

			m, err := readMap(mapPath)
			if err != nil {
				return err
			}
			svc, err := e.validationService()
			if err != nil {
				return err
			}
			report, err := svc.ScanOnly(e.ctx, m)
			if err != nil {
				return apperrors.Wrap(err, "scan failed")
			}
			e.logger.Info("scan complete",
				zap.String("run_id", report.Manifest.RunID.String()),
				zap.Int("matches", len(report.Outcome.Matches)))
			return writeReport(output, report, e.cfg.Scan.StrongThreshold, e.cfg.Scan.TopN)
		},
	}

	cmd.Flags().StringVar(&mapPath, "map", "", "JSON map file")
	cmd.Flags().StringVar(&output.format, "format", "json", "Output format: json, xlsx, markdown or html")
	cmd.Flags().StringVar(&output.out, "out", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}

func newValidateCmd(flags *globalFlags) *cobra.Command {
	var mapPath string
	var output outputFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run echo detection and compare against a null ensemble",
		Long: `Run echo detection over a JSON sky map, rerun it over null maps
from the configured provider and report empirical p-values.

Example: loopscan validate --map planck_nside32.json --ensemble 200 --format xlsx --out report.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close()

			m, err := readMap(mapPath)
			if err != nil {
				return err
			}
			svc, err := e.validationService()
			if err != nil {
				return err
			}
			svc.OnProgress(func(done, total int) {
				fmt.Fprintf(os.Stderr, "\rnull maps: %d/%d", done, total)
			})
			report, err := svc.Validate(e.ctx, m)
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return apperrors.Wrap(err, "validation failed")
			}
			return writeReport(output, report, e.cfg.Scan.StrongThreshold, e.cfg.Scan.TopN)
		},
	}

	cmd.Flags().StringVar(&mapPath, "map", "", "JSON map file")
	cmd.Flags().StringVar(&output.format, "format", "json", "Output format: json, xlsx, markdown or html")
	cmd.Flags().StringVar(&output.out, "out", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("map")
	return cmd
}
