// Package report summarizes finished imports for operators: run counters,
// how discards break down by reason, file and error message, and how recent
// runs compare. It reads only from the storage interfaces.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// Defaults for Options.
const (
	DefaultTopErrors = 10
	DefaultRecent    = 10
)

// Store is what a report reads from.
type Store interface {
	storage.LedgerStore
	storage.DiscardStore
	storage.AnalysisStore
}

// Options bound the report sections.
type Options struct {
	TopErrors int
	Recent    int
}

// Summary describes one import run.
type Summary struct {
	Import domain.ImportRun `json:"import"`
	// Discarded counts every discard row, insertion errors included.
	Discarded   int64                    `json:"discarded"`
	SuccessRate float64                  `json:"successRate"`
	Breakdown   storage.DiscardBreakdown `json:"breakdown"`
	Analysis    *domain.ImportAnalysis   `json:"analysis,omitempty"`
}

// RecentImport is a run in the recent-imports list.
type RecentImport struct {
	domain.ImportRun
	SuccessRate float64 `json:"successRate"`
}

// Report is the full output of Build.
type Report struct {
	Summary Summary        `json:"summary"`
	Recent  []RecentImport `json:"recent"`
}

// ErrNoImports is returned by Build when no run exists to report on.
var ErrNoImports = errors.New("report: no imports found")

// Build assembles the report for importID, or for the newest run when
// importID is empty.
func Build(ctx context.Context, st Store, importID string, opt Options) (Report, error) {
	if opt.TopErrors <= 0 {
		opt.TopErrors = DefaultTopErrors
	}
	if opt.Recent <= 0 {
		opt.Recent = DefaultRecent
	}

	recent, err := st.ListImports(ctx, opt.Recent)
	if err != nil {
		return Report{}, fmt.Errorf("report: list imports: %w", err)
	}
	if importID == "" {
		if len(recent) == 0 {
			return Report{}, ErrNoImports
		}
		importID = recent[0].ID
	}

	s, err := Summarize(ctx, st, importID, opt.TopErrors)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Summary: s, Recent: make([]RecentImport, len(recent))}
	for i, run := range recent {
		rep.Recent[i] = RecentImport{ImportRun: run, SuccessRate: SuccessRate(run)}
	}
	return rep, nil
}

// Summarize reports on a single run.
func Summarize(ctx context.Context, st Store, importID string, topN int) (Summary, error) {
	run, err := st.GetImport(ctx, importID)
	if err != nil {
		return Summary{}, fmt.Errorf("report: import %s: %w", importID, err)
	}
	b, err := st.DiscardBreakdown(ctx, importID, topN)
	if err != nil {
		return Summary{}, fmt.Errorf("report: discard breakdown: %w", err)
	}
	s := Summary{Import: run, Discarded: b.Total, SuccessRate: SuccessRate(run), Breakdown: b}

	a, err := st.GetAnalysis(ctx, importID)
	switch {
	case err == nil:
		s.Analysis = &a
	case !errors.Is(err, storage.ErrNotFound):
		return Summary{}, fmt.Errorf("report: analysis: %w", err)
	}
	return s, nil
}

// SuccessRate is successful/total as a percentage with two decimals.
func SuccessRate(run domain.ImportRun) float64 {
	if run.TotalRecords <= 0 {
		return 0
	}
	return math.Round(float64(run.SuccessfulRecords)*10000/float64(run.TotalRecords)) / 100
}

// WriteText renders rep for a terminal.
func (rep Report) WriteText(w io.Writer) error {
	s := rep.Summary
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	p := func(format string, a ...any) { fmt.Fprintf(tw, format, a...) }

	p("Import Summary: %s\n", s.Import.ID)
	p("  Status:\t%s\n", s.Import.Status)
	p("  Source:\t%s\n", s.Import.SourceURL)
	p("  Started:\t%s (%s)\n", s.Import.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Time(s.Import.CreatedAt))
	p("  Total records:\t%s\n", humanize.Comma(s.Import.TotalRecords))
	p("  Successful:\t%s (%.2f%%)\n", humanize.Comma(s.Import.SuccessfulRecords), s.SuccessRate)
	p("  Failed:\t%s\n", humanize.Comma(s.Import.FailedRecords))
	p("  Discarded:\t%s\n", humanize.Comma(s.Discarded))
	if s.Import.ErrorMessage != nil {
		p("  Error:\t%s\n", *s.Import.ErrorMessage)
	}
	if a := s.Analysis; a != nil {
		p("  Records with IDs:\t%s (%.2f%%)\n", humanize.Comma(a.RecordsWithIDs), a.PercentageWithIDs)
		p("  Records without IDs:\t%s (%.2f%%)\n", humanize.Comma(a.RecordsWithoutIDs), a.PercentageWithoutIDs)
	}

	if s.Discarded > 0 {
		p("\nBy Reason:\n")
		for _, rc := range s.Breakdown.ByReason {
			p("  %s:\t%s\t(%.1f%%)\n", rc.Reason, humanize.Comma(rc.Count), float64(rc.Count)*100/float64(s.Discarded))
		}
		p("\nBy File:\n")
		for _, fc := range s.Breakdown.ByFile {
			name := fc.FileName
			if name == "" {
				name = "(unknown)"
			}
			p("  %s:\t%s\n", name, humanize.Comma(fc.Count))
		}
		if len(s.Breakdown.TopErrors) > 0 {
			p("\nTop Error Messages:\n")
			for _, mc := range s.Breakdown.TopErrors {
				p("  %q:\t%s\n", truncate(mc.Message, 80), humanize.Comma(mc.Count))
			}
		}
	}

	if len(rep.Recent) > 0 {
		p("\nRecent Imports:\n")
		p("  ID\tDATE\tSTATUS\tRECORDS\tFAILED\n")
		for _, r := range rep.Recent {
			p("  %s\t%s\t%s\t%s/%s (%.2f%%)\t%s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status,
				humanize.Comma(r.SuccessfulRecords), humanize.Comma(r.TotalRecords), r.SuccessRate,
				humanize.Comma(r.FailedRecords))
		}
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
