package charts

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"strconv"
	"strings"

	"github.com/statvalue/statvalue-companion/internal/radar"
)

const (
	gridColor    = "#E5E7EB"
	axisColor    = "#9CA3AF"
	labelColor   = "#374151"
	tickColor    = "#6B7280"
	emptyMessage = "Select players to compare"
)

// RenderRadarSVG writes c as a standalone SVG document: grid rings with
// tick labels, axis spokes and labels, one closed polygon with markers per
// series and a legend. An empty chart renders the grid and a placeholder
// message.
func RenderRadarSVG(w io.Writer, c radar.Chart, title string) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}

	p(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s" font-family="sans-serif">`+"\n",
		num(c.Width), num(c.Height), num(c.Width), num(c.Height))
	if title != "" {
		p(`<title>%s</title>`+"\n", html.EscapeString(title))
	}
	p(`<g transform="translate(%s,%s)">`+"\n", num(c.Center.X), num(c.Center.Y))

	for _, ring := range c.Rings {
		p(`<circle r="%s" fill="none" stroke="%s" stroke-dasharray="4,4"/>`+"\n", num(ring.Radius), gridColor)
		p(`<text x="4" y="%s" font-size="10" fill="%s">%s</text>`+"\n", num(-ring.Radius), tickColor, num(ring.Value))
	}

	for _, axis := range c.Axes {
		p(`<line x1="0" y1="0" x2="%s" y2="%s" stroke="%s"/>`+"\n", num(axis.End.X), num(axis.End.Y), axisColor)
		p(`<text x="%s" y="%s" dy="%s" text-anchor="%s" font-size="12" fill="%s">%s</text>`+"\n",
			num(axis.LabelPos.X), num(axis.LabelPos.Y), axis.DY, axis.Anchor, labelColor, html.EscapeString(axis.Label))
	}

	if c.Empty {
		p(`<text x="0" y="0" text-anchor="middle" font-size="14" fill="%s">%s</text>`+"\n", tickColor, emptyMessage)
	}

	for _, s := range c.Series {
		color := html.EscapeString(s.Color)
		p(`<g class="series" data-player="%s">`+"\n", html.EscapeString(s.Name))
		p(`<polygon points="%s" fill="%s" fill-opacity="%s" stroke="%s" stroke-width="%s"/>`+"\n",
			polygonPoints(s.Points), color, num(s.FillOpacity), color, num(s.StrokeWidth))
		for _, pt := range s.Points {
			p(`<circle cx="%s" cy="%s" r="%s" fill="%s"/>`+"\n", num(pt.X), num(pt.Y), num(s.MarkerRadius), color)
		}
		p("</g>\n")
	}
	p("</g>\n")

	for i, entry := range c.Legend {
		y := 20 + float64(i)*20
		p(`<rect x="10" y="%s" width="12" height="12" fill="%s"/>`+"\n", num(y), html.EscapeString(entry.Color))
		p(`<text x="28" y="%s" font-size="12" fill="%s">%s</text>`+"\n", num(y+10), labelColor, html.EscapeString(entry.Name))
	}

	p("</svg>\n")
	return bw.Flush()
}

func polygonPoints(points []radar.Point) string {
	parts := make([]string, len(points))
	for i, pt := range points {
		parts[i] = num(pt.X) + "," + num(pt.Y)
	}
	return strings.Join(parts, " ")
}

// num formats a coordinate with at most two decimals.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
