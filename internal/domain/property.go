// Package domain holds the persisted entities of the unclaimed-property
// import: the property row itself, the import run ledger entry, discarded
// rows, and the optional pre-load analysis.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property is one unclaimed-property record as stored in unclaimed_properties.
type Property struct {
	ID                       string          `db:"id" json:"id"`
	PropertyType             string          `db:"property_type" json:"propertyType"`
	CashReported             decimal.Decimal `db:"cash_reported" json:"cashReported"`
	SharesReported           decimal.Decimal `db:"shares_reported" json:"sharesReported"`
	NameOfSecuritiesReported *string         `db:"name_of_securities_reported" json:"nameOfSecuritiesReported"`
	NumberOfOwners           string          `db:"number_of_owners" json:"numberOfOwners"`

	OwnerName        string  `db:"owner_name" json:"ownerName"`
	OwnerStreet1     *string `db:"owner_street_1" json:"ownerStreet1"`
	OwnerStreet2     *string `db:"owner_street_2" json:"ownerStreet2"`
	OwnerStreet3     *string `db:"owner_street_3" json:"ownerStreet3"`
	OwnerCity        *string `db:"owner_city" json:"ownerCity"`
	OwnerState       *string `db:"owner_state" json:"ownerState"`
	OwnerZip         *string `db:"owner_zip" json:"ownerZip"`
	OwnerCountryCode *string `db:"owner_country_code" json:"ownerCountryCode"`

	CurrentCashBalance    decimal.Decimal `db:"current_cash_balance" json:"currentCashBalance"`
	NumberOfPendingClaims int             `db:"number_of_pending_claims" json:"numberOfPendingClaims"`
	NumberOfPaidClaims    int             `db:"number_of_paid_claims" json:"numberOfPaidClaims"`

	HolderName    string  `db:"holder_name" json:"holderName"`
	HolderStreet1 *string `db:"holder_street_1" json:"holderStreet1"`
	HolderStreet2 *string `db:"holder_street_2" json:"holderStreet2"`
	HolderStreet3 *string `db:"holder_street_3" json:"holderStreet3"`
	HolderCity    *string `db:"holder_city" json:"holderCity"`
	HolderState   *string `db:"holder_state" json:"holderState"`
	HolderZip     *string `db:"holder_zip" json:"holderZip"`

	CUSIP *string `db:"cusip" json:"cusip"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PropertyColumns is the insert column order shared by every backend. It
// matches the order of the values returned by Property.Values. Timestamps are
// not listed; backends stamp them.
var PropertyColumns = []string{
	"id", "property_type", "cash_reported", "shares_reported",
	"name_of_securities_reported", "number_of_owners", "owner_name",
	"owner_street_1", "owner_street_2", "owner_street_3", "owner_city",
	"owner_state", "owner_zip", "owner_country_code", "current_cash_balance",
	"number_of_pending_claims", "number_of_paid_claims", "holder_name",
	"holder_street_1", "holder_street_2", "holder_street_3", "holder_city",
	"holder_state", "holder_zip", "cusip",
}

// Values returns the record's column values aligned to PropertyColumns.
func (p Property) Values() []any {
	return []any{
		p.ID, p.PropertyType, p.CashReported, p.SharesReported,
		p.NameOfSecuritiesReported, p.NumberOfOwners, p.OwnerName,
		p.OwnerStreet1, p.OwnerStreet2, p.OwnerStreet3, p.OwnerCity,
		p.OwnerState, p.OwnerZip, p.OwnerCountryCode, p.CurrentCashBalance,
		p.NumberOfPendingClaims, p.NumberOfPaidClaims, p.HolderName,
		p.HolderStreet1, p.HolderStreet2, p.HolderStreet3, p.HolderCity,
		p.HolderState, p.HolderZip, p.CUSIP,
	}
}

// Candidate is a normalized record still carrying where it came from, so a
// later rejection (duplicate id, failed write) can be attributed to a file
// and row.
type Candidate struct {
	Property
	FileName  string
	RowNumber int
}

// StringPtr returns nil for the empty string and &s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
