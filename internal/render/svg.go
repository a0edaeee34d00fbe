package render

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strconv"
)

// SVGSurface records drawing calls as SVG elements.
type SVGSurface struct {
	width, height float64
	body          bytes.Buffer
}

func NewSVGSurface(width, height float64) *SVGSurface {
	return &SVGSurface{width: width, height: height}
}

func (s *SVGSurface) FillPolygon(pts []Point, fill string) {
	if len(pts) < 3 {
		return
	}
	s.body.WriteString(`<polygon points="`)
	writePoints(&s.body, pts)
	fmt.Fprintf(&s.body, `" fill="%s"/>`+"\n", html.EscapeString(fill))
}

func (s *SVGSurface) StrokePolyline(pts []Point, stroke string, width float64) {
	if len(pts) < 2 {
		return
	}
	s.body.WriteString(`<polyline points="`)
	writePoints(&s.body, pts)
	fmt.Fprintf(&s.body, `" fill="none" stroke="%s" stroke-width="%s"/>`+"\n",
		html.EscapeString(stroke), num(width))
}

func (s *SVGSurface) Text(at Point, text string, fill string, size float64) {
	fmt.Fprintf(&s.body,
		`<text x="%s" y="%s" fill="%s" font-size="%s" font-family="sans-serif" text-anchor="middle" dominant-baseline="central">%s</text>`+"\n",
		num(at.X), num(at.Y), html.EscapeString(fill), num(size), html.EscapeString(text))
}

// WriteTo writes the complete SVG document.
func (s *SVGSurface) WriteTo(w io.Writer) (int64, error) {
	var doc bytes.Buffer
	fmt.Fprintf(&doc, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(s.width), num(s.height), num(s.width), num(s.height))
	doc.Write(s.body.Bytes())
	doc.WriteString("</svg>\n")
	n, err := w.Write(doc.Bytes())
	return int64(n), err
}

func writePoints(b *bytes.Buffer, pts []Point) {
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(num(p.X))
		b.WriteByte(',')
		b.WriteString(num(p.Y))
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
