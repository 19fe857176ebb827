package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/titanbuild/vistalink/internal/domain"
	"github.com/titanbuild/vistalink/internal/repository"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	timeLayouts = []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
	}
)

// Service ingests Vista ERP exports into the reconciliation store. New rows
// start unmatched; rows already present (same kind and external id) have
// their comparison fields refreshed while the link survives untouched.
type Service struct {
	vistaRepo repository.VistaRecordRepository
	batchRepo repository.ImportBatchRepository
}

// NewService creates a new ingestion service.
func NewService(vistaRepo repository.VistaRecordRepository, batchRepo repository.ImportBatchRepository) *Service {
	return &Service{vistaRepo: vistaRepo, batchRepo: batchRepo}
}

// UploadRequest describes one ERP export upload. Kind is required for CSV
// files; xlsx files carry one sheet per kind instead.
type UploadRequest struct {
	FileName   string
	Kind       *domain.Kind
	ImportedBy string
	Data       io.Reader
}

// RowError records one rejected row; the rest of the upload continues.
type RowError struct {
	Kind      domain.Kind `json:"kind"`
	RowNumber int         `json:"row_number"`
	Message   string      `json:"message"`
}

// UploadSummary reports the outcome of one upload.
type UploadSummary struct {
	BatchID    uuid.UUID                              `json:"batch_id"`
	FileName   string                                 `json:"file_name"`
	KindCounts map[domain.Kind]domain.ImportKindCount `json:"kind_counts"`
	RowErrors  []RowError                             `json:"row_errors,omitempty"`
}

// Upload parses the export file and upserts its rows per kind.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadSummary, error) {
	summary := UploadSummary{
		FileName:   req.FileName,
		KindCounts: make(map[domain.Kind]domain.ImportKindCount),
	}

	if req.Data == nil {
		return summary, domain.NewValidationError("data reader is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, domain.NewValidationError("file is empty")
	}

	sheets, err := parseExport(req.FileName, payload, req.Kind)
	if err != nil {
		return summary, err
	}

	for _, sheet := range sheets {
		counts := summary.KindCounts[sheet.kind]
		for rowIdx, row := range sheet.rows {
			rowNumber := rowIdx + 2 // header row is 1-based row 1
			record, err := buildRecord(sheet.kind, sheet.headers, row)
			if err != nil {
				summary.RowErrors = append(summary.RowErrors, RowError{
					Kind:      sheet.kind,
					RowNumber: rowNumber,
					Message:   err.Error(),
				})
				continue
			}

			created, err := s.vistaRepo.Upsert(ctx, record)
			if err != nil {
				summary.RowErrors = append(summary.RowErrors, RowError{
					Kind:      sheet.kind,
					RowNumber: rowNumber,
					Message:   fmt.Sprintf("failed to store row: %v", err),
				})
				continue
			}
			if created {
				counts.New++
			} else {
				counts.Updated++
			}
		}
		summary.KindCounts[sheet.kind] = counts
	}

	batch := domain.NewImportBatch(req.FileName, req.ImportedBy, summary.KindCounts)
	if _, err := s.batchRepo.Record(ctx, batch); err != nil {
		return summary, fmt.Errorf("failed to record import batch: %w", err)
	}
	summary.BatchID = batch.ID

	return summary, nil
}

// History lists past import batches, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]domain.ImportBatch, error) {
	return s.batchRepo.List(ctx, limit)
}

// sheetData is one kind's worth of parsed tabular data.
type sheetData struct {
	kind    domain.Kind
	headers []string
	rows    [][]string
}

func parseExport(fileName string, payload []byte, kind *domain.Kind) ([]sheetData, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		if kind == nil {
			return nil, domain.NewValidationError("kind is required for csv uploads")
		}
		return parseCSV(payload, *kind)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, kind domain.Kind) ([]sheetData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	sheet, err := normalizeSheet(kind, records)
	if err != nil {
		return nil, err
	}
	return []sheetData{sheet}, nil
}

func parseExcel(payload []byte) ([]sheetData, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, domain.NewValidationError("excel file has no sheets")
	}

	var sheets []sheetData
	for _, name := range names {
		kind, ok := sheetKind(name)
		if !ok {
			// Vista exports carry summary sheets alongside the data; skip
			// anything that is not a known kind.
			continue
		}

		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows from sheet %s: %w", name, err)
		}

		sheet, err := normalizeSheet(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		sheets = append(sheets, sheet)
	}

	if len(sheets) == 0 {
		return nil, domain.NewValidationError("no sheet matched a known kind")
	}
	return sheets, nil
}

func normalizeSheet(kind domain.Kind, records [][]string) (sheetData, error) {
	var headerRow []string
	var dataRows [][]string

	for _, row := range records {
		if emptyRow(row) {
			continue
		}
		if headerRow == nil {
			headerRow = row
			continue
		}
		dataRows = append(dataRows, row)
	}

	if headerRow == nil {
		return sheetData{}, domain.NewValidationError("no header row detected")
	}

	headers := make([]string, len(headerRow))
	for i, cell := range headerRow {
		headers[i] = normalizeHeader(cell)
	}

	return sheetData{kind: kind, headers: headers, rows: dataRows}, nil
}

// sheetKind maps an xlsx sheet name to a Vista kind, tolerating spacing and
// case variations ("Work Orders", "work_orders", "WorkOrders").
func sheetKind(name string) (domain.Kind, bool) {
	normalized := normalizeHeader(name)
	normalized = strings.ReplaceAll(normalized, "_", "-")
	kind, err := domain.ParseKind(normalized)
	if err != nil {
		return "", false
	}
	return kind, true
}

func normalizeHeader(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func parseAmount(raw string) (*float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	if cleaned == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return &value, nil
}

func parseDate(raw string) (*time.Time, error) {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", raw)
}
