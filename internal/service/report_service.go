package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/VCalixtoR/gestaomt-back/internal/apierror"
	"github.com/VCalixtoR/gestaomt-back/internal/dto"
	"github.com/VCalixtoR/gestaomt-back/internal/infra"
	"github.com/VCalixtoR/gestaomt-back/internal/worker"

	"github.com/rs/zerolog/log"
)

const reportTimeLayout = "02/01/2006 15:04"

// Rendered is a PDF on local disk, scheduled for removal.
type Rendered struct {
	Path string
	Name string
}

type ReportRenderer interface {
	Render(kind infra.ReportKind, data infra.Report) (string, string, error)
}

type EmailQueue interface {
	EnqueueEmail(ctx context.Context, payload worker.EmailJobPayload) error
}

type ReportService interface {
	SaleReceipt(ctx context.Context, id int64) (*Rendered, error)
	ConditionalReceipt(ctx context.Context, id int64) (*Rendered, error)
	SalesReport(ctx context.Context, f dto.SaleFilter) (*Rendered, error)
	ConditionalsReport(ctx context.Context, f dto.ConditionalFilter) (*Rendered, error)
	// EmailSaleReceipt renders the receipt and queues it for the client's mail.
	EmailSaleReceipt(ctx context.Context, id int64) error
}

type reportService struct {
	sales        SaleService
	conditionals ConditionalService
	renderer     ReportRenderer
	cleanup      worker.CleanupScheduler
	queue        EmailQueue
}

func NewReportService(
	sales SaleService,
	conditionals ConditionalService,
	renderer ReportRenderer,
	cleanup worker.CleanupScheduler,
	queue EmailQueue,
) ReportService {
	return &reportService{sales: sales, conditionals: conditionals, renderer: renderer, cleanup: cleanup, queue: queue}
}

func (s *reportService) render(ctx context.Context, kind infra.ReportKind, data infra.Report) (*Rendered, error) {
	path, name, err := s.renderer.Render(kind, data)
	if err != nil {
		return nil, apierror.Transaction("Error al generar el PDF", err)
	}
	if s.cleanup != nil {
		if err := s.cleanup.Schedule(ctx, path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("report cleanup not scheduled")
		}
	}
	return &Rendered{Path: path, Name: name}, nil
}

func (s *reportService) SaleReceipt(ctx context.Context, id int64) (*Rendered, error) {
	sale, err := s.sales.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, infra.ReportSaleReceipt, saleReceipt(sale))
}

func (s *reportService) ConditionalReceipt(ctx context.Context, id int64) (*Rendered, error) {
	c, err := s.conditionals.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, infra.ReportConditionalReceipt, conditionalReceipt(c))
}

func (s *reportService) SalesReport(ctx context.Context, f dto.SaleFilter) (*Rendered, error) {
	list, err := s.sales.List(ctx, f)
	if err != nil {
		return nil, err
	}
	sec := infra.ReportSection{
		Columns: []string{"Id", "Fecha", "Cliente", "Empleado", "Estado", "Pagos", "Total"},
		Widths:  []float64{12, 28, 35, 30, 20, 45, 20},
	}
	for _, v := range list.Sales {
		sec.Rows = append(sec.Rows, []string{
			fmt.Sprint(v.ID), v.CreatedAt.Format(reportTimeLayout), v.ClientName, v.EmployeeName,
			v.Status, v.PaymentSummary, v.TotalValue.StringFixed(2),
		})
	}
	return s.render(ctx, infra.ReportSales, infra.Report{
		Title:    "Reporte de ventas",
		Subtitle: fmt.Sprintf("%d ventas", list.Count),
		Filters: listFilters(
			idFilter(f.ID), textFilter("Cliente", f.ClientName), textFilter("Estado", f.Status),
			textFilter("Desde", f.CreatedFrom), textFilter("Hasta", f.CreatedTo),
			floatFilter("Total minimo", f.TotalMin), floatFilter("Total maximo", f.TotalMax),
		),
		Sections: []infra.ReportSection{sec},
	})
}

func (s *reportService) ConditionalsReport(ctx context.Context, f dto.ConditionalFilter) (*Rendered, error) {
	list, err := s.conditionals.List(ctx, f)
	if err != nil {
		return nil, err
	}
	sec := infra.ReportSection{
		Columns: []string{"Id", "Fecha", "Cliente", "Empleado", "Estado"},
		Widths:  []float64{15, 35, 60, 50, 30},
	}
	for _, c := range list.Conditionals {
		sec.Rows = append(sec.Rows, []string{
			fmt.Sprint(c.ID), c.CreatedAt.Format(reportTimeLayout), c.ClientName, c.EmployeeName, c.Status,
		})
	}
	summary := infra.ReportSection{
		Heading: "Resumen",
		Columns: []string{"Total", "Pendientes", "Devueltos", "Cancelados"},
		Rows: [][]string{{
			fmt.Sprint(list.Summary.Total), fmt.Sprint(list.Summary.Pending),
			fmt.Sprint(list.Summary.Returned), fmt.Sprint(list.Summary.Canceled),
		}},
	}
	return s.render(ctx, infra.ReportConditionals, infra.Report{
		Title: "Reporte de condicionales",
		Filters: listFilters(
			idFilter(f.ID), textFilter("Cliente", f.ClientName), textFilter("Estado", f.Status),
			textFilter("Desde", f.CreatedFrom), textFilter("Hasta", f.CreatedTo),
		),
		Sections: []infra.ReportSection{summary, sec},
	})
}

func (s *reportService) EmailSaleReceipt(ctx context.Context, id int64) error {
	sale, err := s.sales.Get(ctx, id)
	if err != nil {
		return err
	}
	if sale.Client.Mail == nil || *sale.Client.Mail == "" {
		return apierror.Validationf("El cliente %s no tiene email registrado", sale.Client.Name)
	}
	out, err := s.render(ctx, infra.ReportSaleReceipt, saleReceipt(sale))
	if err != nil {
		return err
	}
	err = s.queue.EnqueueEmail(ctx, worker.EmailJobPayload{
		ToEmail: *sale.Client.Mail,
		Subject: fmt.Sprintf("Recibo de compra #%d", sale.ID),
		Body:    fmt.Sprintf("Hola %s, adjuntamos el recibo de su compra.", sale.Client.Name),
		PDFPath: out.Path,
	})
	if err != nil {
		return apierror.Transaction("Error al encolar el email", err)
	}
	log.Info().Int64("sale_id", id).Msg("sale receipt queued")
	return nil
}

func saleReceipt(sale *dto.SaleResponse) infra.Report {
	payments := infra.ReportSection{
		Heading: "Pagos",
		Columns: []string{"Forma de pago", "Cuotas", "Valor"},
		Widths:  []float64{110, 30, 50},
	}
	for _, p := range sale.Payments {
		payments.Rows = append(payments.Rows, []string{p.PaymentMethodName, fmt.Sprint(p.Installments), p.Value.StringFixed(2)})
	}
	totals := infra.ReportSection{
		Heading: "Totales",
		Columns: []string{"Descuento", "Total"},
		Rows:    [][]string{{sale.Discount.Shift(2).StringFixed(2) + "%", sale.TotalValue.StringFixed(2)}},
	}
	return infra.Report{
		Title:    fmt.Sprintf("Venta #%d", sale.ID),
		Subtitle: receiptSubtitle(sale.CreatedAt.Format(reportTimeLayout), sale.Status, sale.Employee.Name),
		Sections: []infra.ReportSection{clientSection(sale.Client), linesSection(sale.Lines), payments, totals},
	}
}

func conditionalReceipt(c *dto.ConditionalResponse) infra.Report {
	totals := infra.ReportSection{
		Heading: "Totales",
		Columns: []string{"Cantidad", "Valor"},
		Rows:    [][]string{{fmt.Sprint(c.TotalQuantity), c.TotalValue.StringFixed(2)}},
	}
	return infra.Report{
		Title:    fmt.Sprintf("Condicional #%d", c.ID),
		Subtitle: receiptSubtitle(c.CreatedAt.Format(reportTimeLayout), c.Status, c.Employee.Name),
		Sections: []infra.ReportSection{clientSection(c.Client), linesSection(c.Lines), totals},
	}
}

func receiptSubtitle(created, status, employee string) string {
	return fmt.Sprintf("%s | %s | Empleado: %s", created, status, employee)
}

func clientSection(c dto.ClientSnapshot) infra.ReportSection {
	address := strings.TrimSpace(strings.Join(nonEmpty(c.Address, c.Number, c.Neighborhood, c.City, c.State), ", "))
	return infra.ReportSection{
		Heading: "Cliente",
		Columns: []string{"Nombre", "CPF", "Telefono", "Direccion", "CEP"},
		Widths:  []float64{45, 28, 27, 65, 25},
		Rows:    [][]string{{c.Name, deref(c.CPF), deref(c.Phone), address, deref(c.CEP)}},
	}
}

func linesSection(lines []dto.LineResponse) infra.ReportSection {
	sec := infra.ReportSection{
		Heading: "Productos",
		Columns: []string{"Codigo", "Producto", "Talle", "Color", "Otro", "Cant.", "Precio", "Subtotal"},
		Widths:  []float64{20, 50, 15, 25, 20, 15, 20, 25},
	}
	for _, l := range lines {
		sec.Rows = append(sec.Rows, []string{
			l.ProductCode, l.ProductName, l.SizeName, deref(l.ColorName), deref(l.OtherName),
			fmt.Sprint(l.Quantity), l.UnitPrice.StringFixed(2), l.Subtotal.StringFixed(2),
		})
	}
	return sec
}

func listFilters(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func textFilter(label, v string) string {
	if v == "" {
		return ""
	}
	return label + ": " + v
}

func idFilter(id *int64) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("Id: %d", *id)
}

func floatFilter(label string, v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%s: %.2f", label, *v)
}

func nonEmpty(vals ...*string) []string {
	var out []string
	for _, v := range vals {
		if v != nil && *v != "" {
			out = append(out, *v)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
