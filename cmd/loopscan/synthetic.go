package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"

	"loopscan/adapters/rng"
	"loopscan/adapters/synthetic"
	"loopscan/app"
	"loopscan/domain/echo"
	"loopscan/domain/sky"
	"loopscan/internal/config"
	apperrors "loopscan/internal/errors"
)

type syntheticResult struct {
	PlantedPairs []synthetic.PlantedPair `json:"planted_pairs"`
	MatchesFound int                     `json:"matches_found"`
	Recovered    int                     `json:"planted_recovered"`
	Generator    synthetic.EchoConfig    `json:"generator"`
	Detection    config.ScanConfig       `json:"detection"`
	Matches      []echo.EchoMatch        `json:"matches"`
}

func newSyntheticCmd(flags *globalFlags) *cobra.Command {
	gen := synthetic.DefaultEchoConfig()
	var mapOut, resultOut string

	cmd := &cobra.Command{
		Use:   "synthetic",
		Short: "Plant echoes in a noise map and check that the detector recovers them",
		Long: `Generate a noise map with planted echo pairs, run detection over it
and report how many planted pairs were recovered.

Example: loopscan synthetic --pairs 5 --strength 3 --map-out test_map.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer e.close()

			provider, err := synthetic.NewEchoProvider(gen, rng.New())
			if err != nil {
				return err
			}
			m, planted, err := provider.GenerateWithTruth(e.ctx, e.cfg.Scan.Seed)
			if err != nil {
				return err
			}
			if mapOut != "" {
				if err := writeMap(mapOut, m); err != nil {
					return fmt.Errorf("write map: %w", err)
				}
			}

			scan, err := app.NewScanService(e.cfg.Scan, nil)
			if err != nil {
				return err
			}
			outcome, err := scan.Scan(e.ctx, m)
			if err != nil {
				return apperrors.Wrap(err, "scan failed")
			}

			res := syntheticResult{
				PlantedPairs: planted,
				MatchesFound: len(outcome.Matches),
				Recovered:    recovered(planted, outcome.Matches),
				Generator:    gen,
				Detection:    e.cfg.Scan,
				Matches:      outcome.Matches,
			}

			fmt.Fprintf(os.Stderr, "planted %d pairs, found %d matches, recovered %d\n",
				len(planted), res.MatchesFound, res.Recovered)
			for i, match := range app.TopMatches(outcome.Matches, 5) {
				fmt.Fprintf(os.Stderr, "  %d. %s <-> %s  sep %.1f  r %.3f\n",
					i+1, match.A, match.B, match.Separation, match.Score)
			}

			w := os.Stdout
			if resultOut != "" {
				f, err := os.Create(resultOut)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	cmd.Flags().IntVar(&gen.NSide, "nside", gen.NSide, "Map resolution")
	cmd.Flags().IntVar(&gen.GridNSide, "plant-grid-nside", gen.GridNSide, "Grid the planted centers are drawn from")
	cmd.Flags().Float64Var(&gen.RadiusDeg, "plant-radius", gen.RadiusDeg, "Radius of each planted footprint in degrees")
	cmd.Flags().IntVar(&gen.Pairs, "pairs", gen.Pairs, "Number of echo pairs to plant")
	cmd.Flags().Float64Var(&gen.Strength, "strength", gen.Strength, "Motif amplitude in units of the noise sd")
	cmd.Flags().Float64Var(&gen.SeparationDeg, "separation", gen.SeparationDeg, "Separation of planted pairs in degrees")
	cmd.Flags().StringVar(&mapOut, "map-out", "", "Write the generated map as JSON")
	cmd.Flags().StringVar(&resultOut, "out", "", "Write the result JSON here (default stdout)")
	return cmd
}

// recovered counts planted pairs present among matches.
func recovered(planted []synthetic.PlantedPair, matches []echo.EchoMatch) int {
	found := make(map[echo.PairKey]bool, len(matches))
	for _, m := range matches {
		found[m.Key()] = true
	}
	n := 0
	for _, p := range planted {
		if found[echo.KeyOf(p.A, p.B)] || nearAny(p, matches) {
			n++
		}
	}
	return n
}

// nearAny accepts a match within one patch radius of both planted
// centers, for scan grids that differ from the planting grid.
func nearAny(p synthetic.PlantedPair, matches []echo.EchoMatch) bool {
	const slack = 5.0
	for _, m := range matches {
		da := math.Min(sky.Degrees(sky.AngularDistance(p.A, m.A)), sky.Degrees(sky.AngularDistance(p.A, m.B)))
		db := math.Min(sky.Degrees(sky.AngularDistance(p.B, m.A)), sky.Degrees(sky.AngularDistance(p.B, m.B)))
		if da < slack && db < slack {
			return true
		}
	}
	return false
}
