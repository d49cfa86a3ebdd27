// Package export writes leads and their report headline numbers to an XLSX
// workbook.
package export

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/model"
	"github.com/sells-group/lead-intake/internal/store"
)

// SheetName is the worksheet that holds the leads.
const SheetName = "Leads"

const pageSize = 200

// Header is the first row of the sheet.
var Header = []string{
	"ID", "Company", "Contact", "Job Title", "Email", "Phone", "State", "Country",
	"Website", "Industry", "Company Size", "Use Case", "Timeline", "Lead Source",
	"Lead Score", "Status", "Assigned To", "Pipeline Stage",
	"Opportunity Score", "Recommended Robot", "Created At",
}

// Source is the read side of the store used by the export.
type Source interface {
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
	GetReport(ctx context.Context, leadID string) (*model.Report, error)
}

// Build pages through every lead matching filter and returns the workbook
// and the number of lead rows written. Filter limit and offset are managed
// by Build.
func Build(ctx context.Context, src Source, filter store.LeadFilter) (*xlsx.File, int, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, 0, eris.Wrap(err, "export: add sheet")
	}
	addRow(sheet, Header)

	filter.Limit = pageSize
	filter.Offset = 0
	count := 0
	for {
		leads, err := src.ListLeads(ctx, filter)
		if err != nil {
			return nil, 0, eris.Wrap(err, "export: list leads")
		}
		for i := range leads {
			rpt, err := src.GetReport(ctx, leads[i].ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, 0, eris.Wrapf(err, "export: report for lead %s", leads[i].ID)
			}
			addRow(sheet, Row(&leads[i], rpt))
			count++
		}
		if len(leads) < pageSize {
			break
		}
		filter.Offset += pageSize
	}
	return f, count, nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(ctx context.Context, src Source, filter store.LeadFilter, path string) (int, error) {
	f, n, err := Build(ctx, src, filter)
	if err != nil {
		return 0, err
	}
	if err := f.Save(path); err != nil {
		return 0, eris.Wrapf(err, "export: save %s", path)
	}
	zap.L().Info("export: wrote leads", zap.String("path", path), zap.Int("rows", n))
	return n, nil
}

// Row renders one lead. Report columns stay blank when rpt is nil.
func Row(l *model.Lead, rpt *model.Report) []string {
	row := []string{
		l.ID, l.Company, l.ContactName, l.JobTitle, l.Email, l.Phone, l.State, l.Country,
		l.Website, l.Industry, l.CompanySize, l.UseCase, l.Timeline, l.LeadSource,
		strconv.Itoa(l.LeadScore), string(l.Status), l.AssignedToName, l.PipelineStage,
		"", "", "",
	}
	if rpt != nil {
		row[18] = strconv.Itoa(rpt.OpportunityScore)
		row[19] = rpt.RecommendedRobot
	}
	if !l.CreatedAt.IsZero() {
		row[20] = l.CreatedAt.UTC().Format(time.RFC3339)
	}
	return row
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
