// Package report renders usage series and raw tables as xlsx workbooks.
package report

import (
	"context"
	"fmt"
	"io"

	"gymbook/internal/usage"
)

// ContentType is the MIME type of xlsx output.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TableExporter provides access to database tables for export.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]any, []string, error)
}

// WriteUsage writes one sheet per period and grouping. Each row is a series:
// label, one column per bucket, then the total.
func WriteUsage(out io.Writer, r *usage.Report) error {
	wb := NewWorkbook()
	defer wb.Close()

	periods := []struct {
		name string
		pr   usage.PeriodReport
	}{
		{"weekly", r.Weekly},
		{"monthly", r.Monthly},
		{"yearly", r.Yearly},
	}
	for _, p := range periods {
		for _, m := range []usage.Metric{p.pr.ByService, p.pr.ByCoach} {
			if err := writeMetric(wb, fmt.Sprintf("%s by %s", p.name, m.Category), m); err != nil {
				return err
			}
		}
	}
	return wb.Save(out)
}

func writeMetric(wb *Workbook, sheet string, m usage.Metric) error {
	if err := wb.AddSheet(sheet); err != nil {
		return err
	}
	header := make([]string, 0, len(m.Labels)+2)
	header = append(header, string(m.Category))
	header = append(header, m.Labels...)
	header = append(header, "Total")
	if err := wb.WriteHeader(header); err != nil {
		return err
	}
	for _, s := range m.Series {
		row := make([]any, 0, len(s.Points)+2)
		row = append(row, s.Label)
		for _, p := range s.Points {
			row = append(row, p)
		}
		row = append(row, s.Total)
		if err := wb.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteTables dumps every exported table to its own sheet.
func WriteTables(ctx context.Context, exporter TableExporter, out io.Writer) error {
	names, err := exporter.GetTableNames(ctx)
	if err != nil {
		return fmt.Errorf("get table names: %w", err)
	}

	wb := NewWorkbook()
	defer wb.Close()

	for _, name := range names {
		data, columns, err := exporter.GetTableData(ctx, name)
		if err != nil {
			return fmt.Errorf("get table %s: %w", name, err)
		}
		if err := wb.AddSheet(name); err != nil {
			return err
		}
		if err := wb.WriteHeader(columns); err != nil {
			return err
		}
		for _, rec := range data {
			row := make([]any, len(columns))
			for i, col := range columns {
				row[i] = cellValue(rec[col])
			}
			if err := wb.WriteRow(row); err != nil {
				return err
			}
		}
	}
	return wb.Save(out)
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	default:
		return t
	}
}
