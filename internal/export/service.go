package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/form-extractor/constants"
	"github.com/joseph-ayodele/form-extractor/internal/schema"
)

// Service renders extraction results as XLSX workbooks.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Sheet names used in document workbooks.
const (
	SheetFields   = "Fields"
	SheetEntities = "Entities"
	SheetHistory  = "History"
)

// DocumentXLSX writes one document: a Fields sheet (one row per field), an
// Entities sheet, and one sheet per table.
func (s *Service) DocumentXLSX(doc schema.Document) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetFields); err != nil {
		return nil, err
	}
	w := sheetWriter{f: f, sheet: SheetFields}
	w.row(1, "Document Type", doc.DocumentType)
	w.row(2, "Summary", doc.Summary)
	w.row(3, "Confidence Score", doc.ConfidenceScore)
	w.row(4, "Signatures Detected", doc.SignaturesDetected)
	w.row(5, "Unclear Fields", strings.Join(doc.UnclearFields, ", "))
	w.row(7, "Section", "Field", "Value", "Confidence")

	r := 8
	for _, sec := range doc.Sections {
		for _, fld := range sec.Fields {
			w.row(r, sec.SectionName, fld.FieldName, fld.FieldValue, string(fld.Confidence))
			r++
		}
	}
	_ = f.SetColWidth(SheetFields, "A", "A", 28)
	_ = f.SetColWidth(SheetFields, "B", "B", 28)
	_ = f.SetColWidth(SheetFields, "C", "C", 60)
	_ = f.SetColWidth(SheetFields, "D", "D", 12)

	if _, err := f.NewSheet(SheetEntities); err != nil {
		return nil, err
	}
	w = sheetWriter{f: f, sheet: SheetEntities}
	w.row(1, "Entity", "Value")
	r = 2
	for _, kind := range constants.EntityKinds() {
		for _, v := range doc.KeyEntities.Values(kind) {
			w.row(r, string(kind), v)
			r++
		}
	}
	_ = f.SetColWidth(SheetEntities, "A", "A", 18)
	_ = f.SetColWidth(SheetEntities, "B", "B", 48)

	used := map[string]bool{strings.ToLower(SheetFields): true, strings.ToLower(SheetEntities): true}
	for i, t := range doc.Tables {
		name := uniqueSheetName(t.TableName, i+1, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		w = sheetWriter{f: f, sheet: name}
		w.strings(1, t.Headers)
		for j, cells := range t.Rows {
			w.strings(j+2, cells)
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.document.ok",
		"document_type", doc.DocumentType,
		"fields", doc.FieldCount(),
		"tables", len(doc.Tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// HistoryRow is one line of a batch or history summary.
type HistoryRow struct {
	Filename        string
	Status          string
	DocumentType    string
	ConfidenceScore float64
	FieldCount      int
	LatencyMS       int64
	Error           string
}

// HistoryXLSX writes a one-sheet summary, one row per processed image.
func (s *Service) HistoryXLSX(rows []HistoryRow) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetHistory); err != nil {
		return nil, err
	}
	w := sheetWriter{f: f, sheet: SheetHistory}
	w.row(1, "Filename", "Status", "Document Type", "Confidence", "Fields", "Latency (ms)", "Error")
	for i, h := range rows {
		w.row(i+2, h.Filename, h.Status, h.DocumentType, h.ConfidenceScore, h.FieldCount, h.LatencyMS, truncate(h.Error, 240))
	}

	_ = f.SetColWidth(SheetHistory, "A", "A", 36)
	_ = f.SetColWidth(SheetHistory, "B", "B", 10)
	_ = f.SetColWidth(SheetHistory, "C", "C", 28)
	_ = f.SetColWidth(SheetHistory, "D", "F", 14)
	_ = f.SetColWidth(SheetHistory, "G", "G", 60)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.history.ok", "rows", len(rows), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
}

func (w sheetWriter) row(r int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, r)
		_ = w.f.SetCellValue(w.sheet, cell, v)
	}
}

func (w sheetWriter) strings(r int, values []string) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, r)
		_ = w.f.SetCellStr(w.sheet, cell, v)
	}
}

// uniqueSheetName makes a valid Excel sheet name, distinct (case-insensitively)
// from every name already used.
func uniqueSheetName(name string, n int, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	clean = strings.Trim(clean, "'")
	if clean == "" {
		clean = fmt.Sprintf("Table %d", n)
	}
	clean = cut(clean, 31)

	candidate := clean
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = cut(clean, 31-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
