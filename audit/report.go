package audit

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"lukechampine.com/blake3"
)

// Anomaly kinds emitted by the auditor.
const (
	AnomalyShareSumMismatch = "share_sum_mismatch"
	AnomalyCapacityBreach   = "capacity_breach"
	AnomalyEscrowMismatch   = "escrow_mismatch"
	AnomalyVaultUnderfunded = "vault_underfunded"
)

// Anomaly captures one consistency failure requiring operator review.
type Anomaly struct {
	Kind     string
	AssetID  uint64
	Detail   string
	Expected string
	Actual   string
}

// ReportRow summarises the audited position of a single asset.
type ReportRow struct {
	AssetID           uint64
	Symbol            string
	IssuedShares      string
	HolderSum         string
	MaxShares         string
	EscrowBalance     string
	OpenListingShares string
	PoolPending       string
	Frozen            bool
	Consistent        bool
}

// Report is the durable result of one audit run.
type Report struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Rows        []ReportRow
	Anomalies   []Anomaly
	CSVPath     string
	ParquetPath string
	// Digest is the hex blake3 hash of the CSV artefact, stored in the
	// checkpoint so later verification can detect report tampering.
	Digest string
}

// AnomaliesByKind counts findings per kind, feeding the metrics gauges.
func (r *Report) AnomaliesByKind() map[string]int {
	if r == nil || len(r.Anomalies) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, anomaly := range r.Anomalies {
		out[anomaly.Kind]++
	}
	return out
}

func writeCSV(path string, rows []ReportRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: create csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	header := []string{
		"asset_id", "symbol", "issued_shares", "holder_sum", "max_shares",
		"escrow_balance", "open_listing_shares", "pool_pending", "frozen", "consistent",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("audit: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			fmt.Sprintf("%d", row.AssetID),
			row.Symbol,
			row.IssuedShares,
			row.HolderSum,
			row.MaxShares,
			row.EscrowBalance,
			row.OpenListingShares,
			row.PoolPending,
			boolString(row.Frozen),
			boolString(row.Consistent),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("audit: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("audit: flush csv: %w", err)
	}
	return nil
}

type parquetRow struct {
	AssetID           int64  `parquet:"name=asset_id, type=INT64"`
	Symbol            string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	IssuedShares      string `parquet:"name=issued_shares, type=BYTE_ARRAY, convertedtype=UTF8"`
	HolderSum         string `parquet:"name=holder_sum, type=BYTE_ARRAY, convertedtype=UTF8"`
	MaxShares         string `parquet:"name=max_shares, type=BYTE_ARRAY, convertedtype=UTF8"`
	EscrowBalance     string `parquet:"name=escrow_balance, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpenListingShares string `parquet:"name=open_listing_shares, type=BYTE_ARRAY, convertedtype=UTF8"`
	PoolPending       string `parquet:"name=pool_pending, type=BYTE_ARRAY, convertedtype=UTF8"`
	Frozen            bool   `parquet:"name=frozen, type=BOOLEAN"`
	Consistent        bool   `parquet:"name=consistent, type=BOOLEAN"`
}

func writeParquet(path string, rows []ReportRow) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("audit: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			AssetID:           int64(row.AssetID),
			Symbol:            row.Symbol,
			IssuedShares:      row.IssuedShares,
			HolderSum:         row.HolderSum,
			MaxShares:         row.MaxShares,
			EscrowBalance:     row.EscrowBalance,
			OpenListingShares: row.OpenListingShares,
			PoolPending:       row.PoolPending,
			Frozen:            row.Frozen,
			Consistent:        row.Consistent,
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("audit: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("audit: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("audit: close parquet file: %w", err)
	}
	return nil
}

func digestFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("audit: digest %q: %w", path, err)
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
