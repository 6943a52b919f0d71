package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/parser/csv"
)

// MinFields is the narrowest row accepted when the header is at least this
// wide. Narrower headers require every column to be present.
const MinFields = 5

// Result is the outcome of normalizing one row: either an accepted
// Candidate, or a discard reason with the payload to keep for audit.
type Result struct {
	Candidate domain.Candidate

	// Reason is empty when the row was accepted.
	Reason  domain.DiscardReason
	Message string

	// Original is the captured source payload for a discard.
	Original any
}

// Accepted reports whether the row produced a record.
func (r Result) Accepted() bool { return r.Reason == "" }

// Normalizer maps header-keyed CSV rows onto domain.Property. It owns the
// run's IDGenerator; use one Normalizer per import run.
type Normalizer struct {
	ids IDGenerator
}

// NewNormalizer returns a Normalizer drawing synthetic ids from ids.
func NewNormalizer(ids IDGenerator) *Normalizer {
	if ids == nil {
		ids = NewDeterministicIDs()
	}
	return &Normalizer{ids: ids}
}

// Normalize validates and maps row. It never panics: a failure while mapping
// is reported as a parse_error discard.
func (n *Normalizer) Normalize(row csv.Row, file string) (res Result) {
	if row.Err != nil {
		return Result{
			Reason:   domain.ReasonParseError,
			Message:  row.Err.Error(),
			Original: map[string]any{"line": row.Line, "error": row.Err.Error()},
		}
	}
	defer func() {
		if p := recover(); p != nil {
			res = Result{
				Reason:   domain.ReasonParseError,
				Message:  fmt.Sprintf("normalize: %v", p),
				Original: map[string]any{"raw_row": row.Fields},
			}
		}
	}()

	f := row.Fields
	if strings.TrimSpace(f["OWNER_NAME"]) == "" {
		return Result{Reason: domain.ReasonMissingRequiredFields, Message: "Missing owner name", Original: f}
	}
	if row.Width < min(MinFields, len(f)) {
		return Result{
			Reason:   domain.ReasonMalformedData,
			Message:  fmt.Sprintf("Record has too few fields (%d of %d)", row.Width, len(f)),
			Original: f,
		}
	}

	p := domain.Property{
		PropertyType:             Clean(f["PROPERTY_TYPE"]),
		CashReported:             Amount(f["CASH_REPORTED"]),
		SharesReported:           Amount(f["SHARES_REPORTED"]),
		NameOfSecuritiesReported: optional(f["NAME_OF_SECURITIES_REPORTED"]),
		NumberOfOwners:           Clean(f["NO_OF_OWNERS"]),
		OwnerName:                Clean(f["OWNER_NAME"]),
		OwnerStreet1:             optional(f["OWNER_STREET_1"]),
		OwnerStreet2:             optional(f["OWNER_STREET_2"]),
		OwnerStreet3:             optional(f["OWNER_STREET_3"]),
		OwnerCity:                optional(f["OWNER_CITY"]),
		OwnerState:               optional(f["OWNER_STATE"]),
		OwnerZip:                 optional(f["OWNER_ZIP"]),
		OwnerCountryCode:         optional(f["OWNER_COUNTRY_CODE"]),
		CurrentCashBalance:       Amount(f["CURRENT_CASH_BALANCE"]),
		NumberOfPendingClaims:    Count(f["NUMBER_OF_PENDING_CLAIMS"]),
		NumberOfPaidClaims:       Count(f["NUMBER_OF_PAID_CLAIMS"]),
		HolderName:               Clean(f["HOLDER_NAME"]),
		HolderStreet1:            optional(f["HOLDER_STREET_1"]),
		HolderStreet2:            optional(f["HOLDER_STREET_2"]),
		HolderStreet3:            optional(f["HOLDER_STREET_3"]),
		HolderCity:               optional(f["HOLDER_CITY"]),
		HolderState:              optional(f["HOLDER_STATE"]),
		HolderZip:                optional(f["HOLDER_ZIP"]),
		CUSIP:                    optional(f["CUSIP"]),
	}
	if p.NumberOfOwners == "" {
		p.NumberOfOwners = "1"
	}

	p.ID = SourceID(f)
	if p.ID == "" {
		p.ID = n.ids.NextID(&p)
	}
	return Result{Candidate: domain.Candidate{Property: p, FileName: file, RowNumber: row.Number}}
}

// SourceID returns the source-reported identifier (PROPERTY_ID, else id),
// trimmed, or "".
func SourceID(f map[string]string) string {
	if id := strings.TrimSpace(f["PROPERTY_ID"]); id != "" {
		return id
	}
	return strings.TrimSpace(f["id"])
}

// Clean trims s, folds non-breaking spaces and mis-decoded "\u00c2\u00a0"
// sequences to plain spaces, and returns the NFC form.
func Clean(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\u00c2\u00a0", " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.TrimSpace(s)
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return s
}

func optional(s string) *string { return domain.StringPtr(Clean(s)) }

// Amount parses a monetary cell. Thousands separators and a leading "$" are
// ignored. Empty, unparsable and negative values read as zero.
func Amount(s string) decimal.Decimal {
	s = strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Count parses a non-negative integer cell, truncating any fraction.
// Empty, unparsable and negative values read as zero.
func Count(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}
