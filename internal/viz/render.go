package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/mat"
)

// Table renders rows under headers with the current theme.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(current.Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return Title.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	return t.String()
}

// Matrix renders m with optional row and column labels. Empty label slices
// fall back to indices.
func Matrix(m mat.Matrix, rowLabels, colLabels []string) string {
	r, c := m.Dims()
	headers := make([]string, c+1)
	for j := 0; j < c; j++ {
		headers[j+1] = label(colLabels, j)
	}
	rows := make([][]string, r)
	for i := 0; i < r; i++ {
		row := make([]string, c+1)
		row[0] = MetricLabel.Render(label(rowLabels, i))
		for j := 0; j < c; j++ {
			row[j+1] = fmt.Sprintf("%+.4f", m.At(i, j))
		}
		rows[i] = row
	}
	return Table(headers, rows)
}

// Vector renders v as a single-column matrix.
func Vector(v mat.Vector, labels []string, name string) string {
	return Matrix(v, labels, []string{name})
}

func label(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("%d", i)
}

// Plot draws one series with asciigraph.
func Plot(data []float64, caption string, height, width int) string {
	if len(data) == 0 {
		return Subtle.Render("(no data)")
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// PlotMany overlays several equal-length series.
func PlotMany(series [][]float64, captions []string, height, width int) string {
	if len(series) == 0 {
		return Subtle.Render("(no data)")
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(strings.Join(captions, ", ")),
	)
}
