package sink

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/finlit/ankabot/internal/flow"
	"github.com/finlit/ankabot/internal/store"
)

const exportSheet = "Registrations"

// Exporter rewrites the Excel export from the full store contents. One
// exporter owns one path: every sink and admin command that refreshes the
// file goes through the same exporter, so concurrent refreshes serialize
// instead of interleaving writes into the same workbook.
type Exporter struct {
	mu    sync.Mutex
	store RecordStore
	path  string
	steps []flow.StepDescriptor
}

func NewExporter(st RecordStore, path string, steps []flow.StepDescriptor) *Exporter {
	return &Exporter{store: st, path: path, steps: steps}
}

// Path returns the workbook location, for handing the file to a transport.
func (e *Exporter) Path() string { return e.path }

// Refresh rewrites the workbook from the full store contents.
func (e *Exporter) Refresh() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	recs, err := e.store.AllRecords()
	if err != nil {
		return err
	}
	return WriteExcel(e.path, e.steps, recs)
}

// WriteExcel writes every registration to one sheet: metadata columns first,
// then one column per form field in table order.
func WriteExcel(path string, steps []flow.StepDescriptor, recs []store.StoredRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", exportSheet)

	headers := []string{"ID", "User ID", "Username", "Form", "Created At"}
	for _, st := range steps {
		headers = append(headers, headerLabel(st))
	}
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
	}

	for row, rec := range recs {
		byField := make(map[string]string, len(rec.Answers))
		for _, a := range rec.Answers {
			byField[a.Field] = a.Value
		}
		values := []any{rec.ID, rec.UserID, rec.Username, rec.Form, rec.CreatedAt}
		for _, st := range steps {
			values = append(values, byField[st.Field])
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}

func headerLabel(st flow.StepDescriptor) string {
	if st.Label != "" {
		return st.Label
	}
	return st.Field
}
