package infra

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRenderer_WritesFile(t *testing.T) {
	r := NewReportRenderer(t.TempDir(), "Loja Teste")

	path, name, err := r.Render(ReportSales, Report{
		Title:   "Relatório de vendas",
		Filters: []string{"Cliente contém: ana"},
		Sections: []ReportSection{{
			Heading: "Vendas",
			Columns: []string{"Cod", "Cliente", "Valor"},
			Widths:  []float64{20, 120, 50},
			Rows: [][]string{
				{"1", "Ana Maria", "27.00"},
				{"2", strings.Repeat("nome muito longo ", 20), "10.00"},
			},
		}},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "SalesReport_"))
	assert.True(t, strings.HasSuffix(path, name))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestReportRenderer_UniqueNames(t *testing.T) {
	r := NewReportRenderer(t.TempDir(), "Loja")
	_, a, err := r.Render(ReportSaleReceipt, Report{Title: "Venda #1"})
	require.NoError(t, err)
	_, b, err := r.Render(ReportSaleReceipt, Report{Title: "Venda #1"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestReportRenderer_UnknownKind(t *testing.T) {
	r := NewReportRenderer(t.TempDir(), "Loja")
	_, _, err := r.Render(ReportKind("invoice"), Report{})
	assert.Error(t, err)
}
