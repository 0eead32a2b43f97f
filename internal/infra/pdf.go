package infra

// pdf.go renders receipts and list reports with go-pdf/fpdf on A4 pages:
// store header, title, optional filter box, then one table per section and
// a page counter in the footer. Files land in storagePath with a uuid suffix.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
)

type ReportKind string

const (
	ReportSaleReceipt        ReportKind = "sale_receipt"
	ReportConditionalReceipt ReportKind = "conditional_receipt"
	ReportConditionals       ReportKind = "conditionals_report"
	ReportSales              ReportKind = "sales_report"
)

var reportFilePrefix = map[ReportKind]string{
	ReportSaleReceipt:        "SaleReceipt",
	ReportConditionalReceipt: "ConditionalReceipt",
	ReportConditionals:       "ConditionalsReport",
	ReportSales:              "SalesReport",
}

// Report is the fully assembled content handed to the renderer.
type Report struct {
	Title    string
	Subtitle string
	Filters  []string
	Sections []ReportSection
}

// ReportSection is one table. Widths are in millimetres and should add up
// to at most the printable width (190mm).
type ReportSection struct {
	Heading string
	Columns []string
	Widths  []float64
	Rows    [][]string
}

type ReportRenderer struct {
	storagePath string
	storeName   string
}

func NewReportRenderer(storagePath, storeName string) *ReportRenderer {
	return &ReportRenderer{storagePath: storagePath, storeName: storeName}
}

// Render writes the report and returns its absolute path and file name.
func (r *ReportRenderer) Render(kind ReportKind, data Report) (string, string, error) {
	prefix, ok := reportFilePrefix[kind]
	if !ok {
		return "", "", fmt.Errorf("pdf: unknown report kind %q", kind)
	}
	if err := os.MkdirAll(r.storagePath, 0o755); err != nil {
		return "", "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	fileName := fmt.Sprintf("%s_%s.pdf", prefix, uuid.NewString())
	filePath := filepath.Join(r.storagePath, fileName)

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("%d/{nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 20

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW*0.4, 8, tr(r.storeName), "", 0, "L", false, 0, "")
	pdf.CellFormat(contentW*0.6, 8, tr(data.Title), "", 1, "R", false, 0, "")
	if data.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(contentW, 5, tr(data.Subtitle), "", 1, "R", false, 0, "")
	}
	pdf.Ln(2)

	if len(data.Filters) > 0 {
		pdf.SetDrawColor(241, 170, 167)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(contentW, 6, tr("Filtros"), "LTR", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		for i, f := range data.Filters {
			border := "LR"
			if i == len(data.Filters)-1 {
				border = "LRB"
			}
			pdf.CellFormat(contentW, 5, tr(f), border, 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	for _, sec := range data.Sections {
		writeSection(pdf, tr, contentW, sec)
		pdf.Ln(3)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, fileName, nil
}

func writeSection(pdf *fpdf.Fpdf, tr func(string) string, contentW float64, sec ReportSection) {
	if sec.Heading != "" {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(contentW, 7, tr(sec.Heading), "", 1, "L", false, 0, "")
	}
	if len(sec.Columns) == 0 {
		return
	}
	widths := sec.Widths
	if len(widths) != len(sec.Columns) {
		widths = make([]float64, len(sec.Columns))
		for i := range widths {
			widths[i] = contentW / float64(len(sec.Columns))
		}
	}

	pdf.SetDrawColor(241, 170, 167)
	pdf.SetFillColor(241, 170, 167)
	pdf.SetTextColor(54, 52, 52)
	pdf.SetFont("Helvetica", "B", 8)
	for i, col := range sec.Columns {
		pdf.CellFormat(widths[i], 6, tr(col), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetFillColor(255, 245, 244)
	for n, row := range sec.Rows {
		fill := n%2 == 1
		for i := range sec.Columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(widths[i], 5, tr(fitCell(pdf, cell, widths[i])), "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.SetTextColor(0, 0, 0)
}

// fitCell truncates text that would overflow a cell of width w.
func fitCell(pdf *fpdf.Fpdf, s string, w float64) string {
	if pdf.GetStringWidth(s) <= w-2 {
		return s
	}
	runes := []rune(s)
	for len(runes) > 1 && pdf.GetStringWidth(string(runes)+"...") > w-2 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
