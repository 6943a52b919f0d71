package report

import (
	"context"
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/kzetxa/getmoneyclaude/internal/domain"
	"github.com/kzetxa/getmoneyclaude/internal/storage"
)

// discardRow is the parquet layout of a discarded record.
type discardRow struct {
	ID           string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ImportID     string `parquet:"name=import_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reason       string `parquet:"name=discard_reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	ErrorMessage string `parquet:"name=error_message, type=BYTE_ARRAY, convertedtype=UTF8"`
	FileName     string `parquet:"name=file_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	RowNumber    int32  `parquet:"name=row_number, type=INT32"`
	OriginalData string `parquet:"name=original_data, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt    int64  `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

func toParquet(d domain.DiscardedRecord) discardRow {
	row := discardRow{
		ID:           d.ID,
		ImportID:     d.ImportID,
		Reason:       string(d.DiscardReason),
		ErrorMessage: domain.Deref(d.ErrorMessage),
		FileName:     domain.Deref(d.FileName),
		OriginalData: string(d.OriginalData),
		CreatedAt:    d.CreatedAt.UnixMilli(),
	}
	if d.RowNumber != nil {
		row.RowNumber = int32(*d.RowNumber)
	}
	return row
}

// ExportParquet writes every discard of importID to a snappy-compressed
// parquet file at path and returns the number of rows written. A partial
// file is removed on failure.
func ExportParquet(ctx context.Context, st storage.DiscardStore, importID, path string) (n int, err error) {
	total, err := st.CountDiscards(ctx, importID)
	if err != nil {
		return 0, fmt.Errorf("report: count discards: %w", err)
	}
	var recs []domain.DiscardedRecord
	if total > 0 {
		if recs, err = st.ListDiscards(ctx, importID, int(total)); err != nil {
			return 0, fmt.Errorf("report: list discards: %w", err)
		}
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, fmt.Errorf("report: create %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = fw.Close()
			_ = os.Remove(path)
		}
	}()

	pw, err := writer.NewParquetWriter(fw, new(discardRow), 4)
	if err != nil {
		return 0, fmt.Errorf("report: parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, d := range recs {
		if err = pw.Write(toParquet(d)); err != nil {
			return 0, fmt.Errorf("report: write row %s: %w", d.ID, err)
		}
		n++
	}
	if err = pw.WriteStop(); err != nil {
		return 0, fmt.Errorf("report: finalize parquet: %w", err)
	}
	if err = fw.Close(); err != nil {
		return 0, fmt.Errorf("report: close %s: %w", path, err)
	}
	return n, nil
}
