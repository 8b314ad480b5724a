package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
)

// ExportService renders read-only permit snapshots. Renderers never mutate
// the permit; malformed JSONB payloads arrive as empty lists from the entity
// layer and render as such.
type ExportService struct {
	permitRepo *repository.PermitRepository
}

// NewExportService creates the export service
func NewExportService(permitRepo *repository.PermitRepository) *ExportService {
	return &ExportService{permitRepo: permitRepo}
}

// ExportResult rendered snapshot
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

const timeLayout = "2006-01-02 15:04"

func (s *ExportService) loadSnapshot(ctx context.Context, permitID string) (*entity.Permit, error) {
	permit, err := s.permitRepo.FindByID(ctx, permitID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("permit")
		}
		return nil, err
	}
	return permit, nil
}

// summaryRows returns the permit header as label/value pairs shared by all
// renderers.
func summaryRows(p *entity.Permit) [][2]string {
	now := time.Now()
	rows := [][2]string{
		{"Permit Number", p.Number},
		{"Type", p.Type},
		{"Work Type", p.WorkType},
		{"Risk Level", p.RiskLevel},
		{"Status", p.EffectiveStatus(now)},
		{"Description", p.Description},
		{"Work Entity", p.WorkEntity},
		{"Emergency Contact", p.EmergencyContact},
		{"Valid From", p.ValidFrom.Format(timeLayout)},
		{"Valid Until", p.ValidUntil.Format(timeLayout)},
		{"On-Site Test Required", strconv.FormatBool(p.OnSiteTestRequired)},
		{"Hazards", strings.Join(p.Hazards, ", ")},
		{"Precautions", strings.Join(p.Precautions, ", ")},
		{"PPE", strings.Join(p.PPE, ", ")},
	}
	if p.Location != nil {
		rows = append(rows, [2]string{"Location", p.Location.Name})
	}
	if p.Contractor != nil {
		rows = append(rows, [2]string{"Contractor", p.Contractor.Name})
	}
	if p.RejectionReason != "" {
		rows = append(rows, [2]string{"Rejection Reason", p.RejectionReason})
	}
	return rows
}

func personnelRows(p *entity.Permit) [][]string {
	rows := make([][]string, 0, len(p.Personnel))
	for _, person := range p.Personnel {
		rows = append(rows, []string{person.Name, person.Role})
	}
	return rows
}

func gasTestRows(p *entity.Permit) [][]string {
	rows := make([][]string, 0, len(p.GasTests))
	for _, t := range p.GasTests {
		rows = append(rows, []string{
			t.CreatedAt.Format(timeLayout),
			fmt.Sprintf("%.1f", t.Oxygen),
			fmt.Sprintf("%.1f", t.CO),
			fmt.Sprintf("%.1f", t.CO2),
			fmt.Sprintf("%.1f", t.LEL),
			fmt.Sprintf("%.1f", t.ToxicGas),
			t.Result,
		})
	}
	return rows
}

func checklistRows(p *entity.Permit) [][]string {
	rows := make([][]string, 0, len(p.Checklist))
	for _, c := range p.Checklist {
		rows = append(rows, []string{c.Item, strconv.FormatBool(c.Checked), c.CreatedAt.Format(timeLayout)})
	}
	return rows
}

func handoverRows(p *entity.Permit) [][]string {
	rows := make([][]string, 0, len(p.Handovers))
	for _, h := range p.Handovers {
		rows = append(rows, []string{h.OutgoingIssuer, h.IncomingIssuer, h.CreatedAt.Format(timeLayout)})
	}
	return rows
}

var gasTestHeaders = []string{"Time", "O2 %", "CO ppm", "CO2 ppm", "LEL %", "Toxic ppm", "Result"}

// ExportXLSX renders the permit snapshot as a workbook.
func (s *ExportService) ExportXLSX(ctx context.Context, permitID string) (*ExportResult, error) {
	permit, err := s.loadSnapshot(ctx, permitID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheet := "Permit"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})

	row := 1
	writeSection := func(title string, headers []string, data [][]string) {
		cell := fmt.Sprintf("A%d", row)
		f.SetCellValue(sheet, cell, title)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
		row++
		if len(headers) > 0 {
			for i, h := range headers {
				col, _ := excelize.ColumnNumberToName(i + 1)
				f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), h)
			}
			row++
		}
		for _, dataRow := range data {
			for i, v := range dataRow {
				col, _ := excelize.ColumnNumberToName(i + 1)
				f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
			}
			row++
		}
		row++
	}

	var summary [][]string
	for _, kv := range summaryRows(permit) {
		summary = append(summary, []string{kv[0], kv[1]})
	}
	writeSection("Permit Summary", nil, summary)
	writeSection("Personnel", []string{"Name", "Role"}, personnelRows(permit))
	writeSection("Gas Tests", gasTestHeaders, gasTestRows(permit))
	writeSection("Checklist", []string{"Item", "Checked", "Time"}, checklistRows(permit))
	writeSection("Handovers", []string{"Outgoing", "Incoming", "Time"}, handoverRows(permit))

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, apperr.Export(fmt.Errorf("write workbook: %w", err))
	}
	return &ExportResult{
		Filename:    permit.Number + ".xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

// ExportCSV renders the permit snapshot as flat CSV sections.
func (s *ExportService) ExportCSV(ctx context.Context, permitID string) (*ExportResult, error) {
	permit, err := s.loadSnapshot(ctx, permitID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	for _, kv := range summaryRows(permit) {
		w.Write([]string{kv[0], kv[1]})
	}
	w.Write(nil)

	w.Write([]string{"Personnel"})
	w.Write([]string{"Name", "Role"})
	for _, r := range personnelRows(permit) {
		w.Write(r)
	}
	w.Write(nil)

	w.Write([]string{"Gas Tests"})
	w.Write(gasTestHeaders)
	for _, r := range gasTestRows(permit) {
		w.Write(r)
	}
	w.Write(nil)

	w.Write([]string{"Checklist"})
	w.Write([]string{"Item", "Checked", "Time"})
	for _, r := range checklistRows(permit) {
		w.Write(r)
	}
	w.Write(nil)

	w.Write([]string{"Handovers"})
	w.Write([]string{"Outgoing", "Incoming", "Time"})
	for _, r := range handoverRows(permit) {
		w.Write(r)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperr.Export(fmt.Errorf("write csv: %w", err))
	}
	return &ExportResult{
		Filename:    permit.Number + ".csv",
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

// ExportPDF renders the permit snapshot as a printable document.
func (s *ExportService) ExportPDF(ctx context.Context, permitID string) (*ExportResult, error) {
	permit, err := s.loadSnapshot(ctx, permitID)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Permit to Work "+permit.Number, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Permit to Work  "+permit.Number, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "", 10)
	for _, kv := range summaryRows(permit) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 6, kv[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 6, kv[1], "", "L", false)
	}

	writeTable := func(title string, headers []string, data [][]string, widths []float64) {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		for i, h := range headers {
			pdf.CellFormat(widths[i], 6, h, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
		if len(data) == 0 {
			pdf.CellFormat(0, 6, "none recorded", "", 1, "L", false, 0, "")
			return
		}
		for _, row := range data {
			for i, v := range row {
				pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	writeTable("Personnel", []string{"Name", "Role"}, personnelRows(permit), []float64{95, 95})
	writeTable("Gas Tests", gasTestHeaders, gasTestRows(permit), []float64{32, 22, 22, 22, 22, 26, 26})
	writeTable("Checklist", []string{"Item", "Checked", "Time"}, checklistRows(permit), []float64{100, 30, 60})
	writeTable("Handovers", []string{"Outgoing", "Incoming", "Time"}, handoverRows(permit), []float64{65, 65, 60})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperr.Export(fmt.Errorf("write pdf: %w", err))
	}
	return &ExportResult{
		Filename:    permit.Number + ".pdf",
		ContentType: "application/pdf",
		Data:        buf.Bytes(),
	}, nil
}
