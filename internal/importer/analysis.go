package importer

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/kzetxa/getmoneyclaude/internal/archive"
	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/parser/csv"
	"github.com/kzetxa/getmoneyclaude/internal/transformer/builtin"
)

// MaxAnalysisSamples bounds the ID-less examples kept in an analysis.
const MaxAnalysisSamples = 10

// fileCount is the counting-pass result for one CSV member.
type fileCount struct {
	rows    int64
	withIDs int64
	samples []domain.AnalysisSample
}

// countEntry counts the data rows of e. With analyze set it streams the
// rows to also tally source identifiers; otherwise it uses the cheaper
// record counter. Both count the rows Stream would yield.
func countEntry(e archive.Entry, opt csv.Options, analyze bool) (fileCount, error) {
	rc, err := e.Open()
	if err != nil {
		return fileCount{}, err
	}
	defer rc.Close()

	if !analyze {
		n, err := csv.CountRows(rc, opt)
		if err != nil {
			return fileCount{}, fmt.Errorf("count %s: %w", e.Name, err)
		}
		return fileCount{rows: n}, nil
	}

	s, err := csv.NewStream(rc, opt)
	if err != nil {
		return fileCount{}, fmt.Errorf("count %s: %w", e.Name, err)
	}
	var fc fileCount
	for {
		row, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fileCount{}, fmt.Errorf("count %s: %w", e.Name, err)
		}
		fc.rows++
		if row.Err != nil {
			continue
		}
		if builtin.SourceID(row.Fields) != "" {
			fc.withIDs++
			continue
		}
		if len(fc.samples) < MaxAnalysisSamples {
			fc.samples = append(fc.samples, domain.AnalysisSample{
				File:               e.Base(),
				OwnerName:          row.Fields["OWNER_NAME"],
				CurrentCashBalance: row.Fields["CURRENT_CASH_BALANCE"],
				HolderName:         row.Fields["HOLDER_NAME"],
				PropertyType:       row.Fields["PROPERTY_TYPE"],
			})
		}
	}
	return fc, nil
}

// buildAnalysis merges per-file counts, in file order, into an analysis.
func buildAnalysis(importID string, counts []fileCount) domain.ImportAnalysis {
	a := domain.ImportAnalysis{ImportID: importID, SampleRecords: []domain.AnalysisSample{}}
	for _, c := range counts {
		a.TotalRecords += c.rows
		a.RecordsWithIDs += c.withIDs
		for _, s := range c.samples {
			if len(a.SampleRecords) < MaxAnalysisSamples {
				a.SampleRecords = append(a.SampleRecords, s)
			}
		}
	}
	a.RecordsWithoutIDs = a.TotalRecords - a.RecordsWithIDs
	if a.TotalRecords > 0 {
		a.PercentageWithIDs = percent(a.RecordsWithIDs, a.TotalRecords)
		a.PercentageWithoutIDs = percent(a.RecordsWithoutIDs, a.TotalRecords)
	}
	return a
}

// percent returns part/whole as a percentage rounded to two decimals.
func percent(part, whole int64) float64 {
	return math.Round(float64(part)*10000/float64(whole)) / 100
}
