// Package export renders stored runs as standalone SVG images.
package export

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/san-kum/rbdsim/internal/analysis"
)

// Palette colors successive series.
var Palette = []string{"#00ffff", "#ff00ff", "#ffcc00", "#00ff88", "#ff4444", "#8888ff"}

type bounds struct {
	minX, maxX, minY, maxY float64
}

func (b *bounds) add(x, y float64) {
	if x < b.minX {
		b.minX = x
	}
	if x > b.maxX {
		b.maxX = x
	}
	if y < b.minY {
		b.minY = y
	}
	if y > b.maxY {
		b.maxY = y
	}
}

// pad widens the box by 10% and guards against zero ranges.
func (b *bounds) pad() {
	rx, ry := b.maxX-b.minX, b.maxY-b.minY
	if rx == 0 {
		rx = 1
	}
	if ry == 0 {
		ry = 1
	}
	b.minX -= rx * 0.1
	b.maxX += rx * 0.1
	b.minY -= ry * 0.1
	b.maxY += ry * 0.1
}

func (b *bounds) project(x, y float64, width, height int) (float64, float64) {
	px := (x - b.minX) / (b.maxX - b.minX) * float64(width)
	py := float64(height) - (y-b.minY)/(b.maxY-b.minY)*float64(height)
	return px, py
}

func header(sb *strings.Builder, width, height int) {
	fmt.Fprintf(sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)
}

func path(sb *strings.Builder, b *bounds, xs, ys []float64, width, height int, stroke string) {
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, stroke)
	for i := range xs {
		x, y := b.project(xs[i], ys[i], width, height)
		if i == 0 {
			fmt.Fprintf(sb, "M%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

// TrajectorySVG draws a phase portrait or any other x/y curve.
func TrajectorySVG(points []analysis.Point, width, height int, stroke string) (string, error) {
	if len(points) < 2 {
		return "", errors.New("export: need at least two points")
	}
	b := bounds{points[0].X, points[0].X, points[0].Y, points[0].Y}
	xs, ys := make([]float64, len(points)), make([]float64, len(points))
	for i, p := range points {
		b.add(p.X, p.Y)
		xs[i], ys[i] = p.X, p.Y
	}
	b.pad()

	var sb strings.Builder
	header(&sb, width, height)
	path(&sb, &b, xs, ys, width, height, stroke)
	sb.WriteString("</svg>")
	return sb.String(), nil
}

// SeriesSVG draws each series against t on shared axes with a legend.
func SeriesSVG(t []float64, series [][]float64, names []string, width, height int) (string, error) {
	if len(t) < 2 || len(series) == 0 {
		return "", errors.New("export: need at least two samples and one series")
	}
	b := bounds{t[0], t[0], series[0][0], series[0][0]}
	for k, s := range series {
		if len(s) != len(t) {
			return "", errors.Errorf("export: series %d has %d samples, time has %d", k, len(s), len(t))
		}
		for i, v := range s {
			b.add(t[i], v)
		}
	}
	b.pad()

	var sb strings.Builder
	header(&sb, width, height)
	for k, s := range series {
		color := Palette[k%len(Palette)]
		path(&sb, &b, t, s, width, height, color)
		if k < len(names) {
			fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*k, color, names[k])
		}
	}
	sb.WriteString("</svg>")
	return sb.String(), nil
}
