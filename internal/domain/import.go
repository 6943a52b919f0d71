package domain

import (
	"encoding/json"
	"time"
)

// ImportStatus is the lifecycle state of an ImportRun.
type ImportStatus string

const (
	StatusPending             ImportStatus = "pending"
	StatusInProgress          ImportStatus = "in_progress"
	StatusCompleted           ImportStatus = "completed"
	StatusCompletedWithErrors ImportStatus = "completed_with_errors"
	StatusFailed              ImportStatus = "failed"
	StatusCancelled           ImportStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s ImportStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s ImportStatus) Valid() bool {
	return s == StatusPending || s == StatusInProgress || s.Terminal()
}

// ImportRun is one execution of the import pipeline (data_imports row).
type ImportRun struct {
	ID                string       `db:"id" json:"id"`
	SourceURL         string       `db:"source_url" json:"sourceUrl"`
	TotalRecords      int64        `db:"total_records" json:"totalRecords"`
	SuccessfulRecords int64        `db:"successful_records" json:"successfulRecords"`
	FailedRecords     int64        `db:"failed_records" json:"failedRecords"`
	Status            ImportStatus `db:"import_status" json:"status"`
	ErrorMessage      *string      `db:"error_message" json:"errorMessage"`
	CreatedAt         time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updatedAt"`
}

// DiscardReason classifies why a row never reached the property table.
type DiscardReason string

const (
	ReasonParseError            DiscardReason = "parse_error"
	ReasonValidationError       DiscardReason = "validation_error"
	ReasonInsertionError        DiscardReason = "insertion_error"
	ReasonDuplicateID           DiscardReason = "duplicate_id"
	ReasonMissingRequiredFields DiscardReason = "missing_required_fields"
	ReasonMalformedData         DiscardReason = "malformed_data"
)

// DiscardReasons lists every reason in a stable order.
var DiscardReasons = []DiscardReason{
	ReasonParseError,
	ReasonValidationError,
	ReasonInsertionError,
	ReasonDuplicateID,
	ReasonMissingRequiredFields,
	ReasonMalformedData,
}

// DiscardedRecord is an append-only audit entry for a rejected row.
type DiscardedRecord struct {
	ID            string          `db:"id" json:"id"`
	OriginalData  json.RawMessage `db:"original_data" json:"originalData"`
	DiscardReason DiscardReason   `db:"discard_reason" json:"discardReason"`
	ErrorMessage  *string         `db:"error_message" json:"errorMessage"`
	FileName      *string         `db:"file_name" json:"fileName"`
	RowNumber     *int            `db:"row_number" json:"rowNumber"`
	ImportID      string          `db:"import_id" json:"importId"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// AnalysisSample is a short description of one record lacking a source id.
type AnalysisSample struct {
	File               string `json:"file"`
	OwnerName          string `json:"owner_name"`
	CurrentCashBalance string `json:"current_cash_balance"`
	HolderName         string `json:"holder_name"`
	PropertyType       string `json:"property_type"`
}

// ImportAnalysis summarizes identifier coverage before loading begins.
type ImportAnalysis struct {
	ImportID             string           `json:"importId"`
	TotalRecords         int64            `json:"totalRecords"`
	RecordsWithIDs       int64            `json:"recordsWithIds"`
	RecordsWithoutIDs    int64            `json:"recordsWithoutIds"`
	PercentageWithIDs    float64          `json:"percentageWithIds"`
	PercentageWithoutIDs float64          `json:"percentageWithoutIds"`
	SampleRecords        []AnalysisSample `json:"sampleRecords"`
	CreatedAt            time.Time        `json:"createdAt"`
}
