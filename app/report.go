package app

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"loopscan/domain/echo"
	"loopscan/domain/run"
)

// TopMatches returns up to n matches ranked by |score|, ties broken by
// canonical key. n <= 0 returns every match.
func TopMatches(matches []echo.EchoMatch, n int) []echo.EchoMatch {
	ranked := append([]echo.EchoMatch(nil), matches...)
	sort.SliceStable(ranked, func(i, j int) bool {
		ai, aj := math.Abs(ranked[i].Score), math.Abs(ranked[j].Score)
		if ai != aj {
			return ai > aj
		}
		return ranked[i].Key().Less(ranked[j].Key())
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

type scoreSummary struct {
	diag   echo.Diagnostics
	strong int
	max    float64
	mean   float64
}

// summarize takes the validated statistics when present and derives
// them from the matches of a scan-only report.
func summarize(report *run.Report, strongThreshold float64) scoreSummary {
	if v := report.Validation; v != nil {
		return scoreSummary{diag: v.Diagnostics, strong: v.StrongCount, max: v.MaxScore, mean: v.MeanScore}
	}
	s := scoreSummary{diag: report.Outcome.Diagnostics}
	matches := report.Outcome.Matches
	sum := 0.0
	for i, m := range matches {
		if m.Score > strongThreshold {
			s.strong++
		}
		if i == 0 || m.Score > s.max {
			s.max = m.Score
		}
		sum += m.Score
	}
	if len(matches) > 0 {
		s.mean = sum / float64(len(matches))
	}
	return s
}

// ResearchSummary renders report as markdown.
func ResearchSummary(report *run.Report, strongThreshold float64, topN int) string {
	var b strings.Builder
	matches := report.Outcome.Matches
	stats := summarize(report, strongThreshold)

	fmt.Fprintf(&b, "# Echo scan %s\n\n", report.Manifest.RunID)
	fmt.Fprintf(&b, "- Map resolution: nside %d\n", report.Manifest.NSide)
	fmt.Fprintf(&b, "- Grid centers: %d (%d invalid patches)\n", stats.diag.GridCenters, stats.diag.InvalidPatches)
	fmt.Fprintf(&b, "- Pairs scored: %d\n", stats.diag.ScoredPairs)
	fmt.Fprintf(&b, "- Matches found: %d\n", len(matches))
	fmt.Fprintf(&b, "- Strong matches (r > %.2f): %d\n", strongThreshold, stats.strong)
	if len(matches) > 0 {
		fmt.Fprintf(&b, "- Max correlation: %.3f\n", stats.max)
		fmt.Fprintf(&b, "- Mean correlation: %.3f\n", stats.mean)
	}
	b.WriteString("\n")

	if v := report.Validation; v != nil {
		b.WriteString("## Validation\n\n")
		fmt.Fprintf(&b, "Status: **%s** against %d null maps (%s).\n\n", v.Status, v.EnsembleSize, report.Manifest.Provider)
		b.WriteString("| Bin | Matches | Null mean | Empirical p | Max r |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, bin := range v.Bins {
			fmt.Fprintf(&b, "| %g | %d | %.2f | %.4f | %.3f |\n", bin.Bin, bin.MatchCount, bin.NullMean, bin.EmpiricalP, bin.MaxScore)
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "- Empirical p (match count): %.4f\n", v.EmpiricalP)
		fmt.Fprintf(&b, "- Welch t = %.3f, df = %.1f, p = %.4g\n", v.TStatistic, v.DegreesOfFreedom, v.PValue)
		fmt.Fprintf(&b, "- Effect size (Cohen's d): %.3f\n", v.EffectSize)
		fmt.Fprintf(&b, "- Null match count: mean %.2f, sd %.2f, p95 %.1f\n",
			v.NullMatchCounts.Mean, v.NullMatchCounts.StdDev, v.NullMatchCounts.Percentile95)
		for _, w := range v.Warnings {
			fmt.Fprintf(&b, "- Warning `%s`: %s\n", w.Code, w.Message)
		}
		b.WriteString("\n")
	}

	top := TopMatches(matches, topN)
	if len(top) > 0 {
		b.WriteString("## Top matches\n\n")
		b.WriteString("| # | A (theta, phi) | B (theta, phi) | Bin | Separation | r |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for i, m := range top {
			fmt.Fprintf(&b, "| %d | %s | %s | %g | %.2f | %.3f |\n", i+1, m.A, m.B, m.Bin, m.Separation, m.Score)
		}
	}
	return b.String()
}

// ResearchSummaryHTML renders the markdown summary to HTML.
func ResearchSummaryHTML(report *run.Report, strongThreshold float64, topN int) []byte {
	md := []byte(ResearchSummary(report, strongThreshold, topN))
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML(md, p, renderer)
}
