package render

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// RasterSurface draws into an RGBA image. Coordinates are CSS pixels and are
// multiplied by Scale (the device pixel ratio).
type RasterSurface struct {
	Img   *image.RGBA
	Scale float64

	z *vector.Rasterizer
}

func NewRasterSurface(width, height int, scale float64) *RasterSurface {
	if scale <= 0 {
		scale = 1
	}
	w := int(math.Ceil(float64(width) * scale))
	h := int(math.Ceil(float64(height) * scale))
	return &RasterSurface{
		Img:   image.NewRGBA(image.Rect(0, 0, w, h)),
		Scale: scale,
		z:     vector.NewRasterizer(0, 0),
	}
}

// FillPolygon fills a closed polygon with anti-aliased edges.
func (r *RasterSurface) FillPolygon(pts []Point, fill string) {
	if len(pts) < 3 {
		return
	}
	c, err := ParseHex(fill)
	if err != nil {
		return
	}
	dev := make([]Point, len(pts))
	for i, p := range pts {
		dev[i] = Point{p.X * r.Scale, p.Y * r.Scale}
	}
	r.fill([][]Point{dev}, c)
}

// StrokePolyline draws each segment as a quad of the given width.
func (r *RasterSurface) StrokePolyline(pts []Point, stroke string, width float64) {
	c, err := ParseHex(stroke)
	if err != nil {
		return
	}
	half := math.Max(0.5, width*r.Scale/2)
	quads := make([][]Point, 0, len(pts))
	for i := 0; i+1 < len(pts); i++ {
		ax, ay := pts[i].X*r.Scale, pts[i].Y*r.Scale
		bx, by := pts[i+1].X*r.Scale, pts[i+1].Y*r.Scale
		l := math.Hypot(bx-ax, by-ay)
		if l == 0 {
			continue
		}
		// unit along the segment and its normal, both scaled to half width
		ux, uy := (bx-ax)/l*half, (by-ay)/l*half
		nx, ny := -uy, ux
		ax, ay, bx, by = ax-ux, ay-uy, bx+ux, by+uy
		quads = append(quads, []Point{
			{ax + nx, ay + ny}, {bx + nx, by + ny}, {bx - nx, by - ny}, {ax - nx, ay - ny},
		})
	}
	r.fill(quads, c)
}

// fill rasterizes device-space paths with a rasterizer sized to their
// bounding box, clipped to the image.
func (r *RasterSurface) fill(paths [][]Point, c color.RGBA) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, path := range paths {
		for _, p := range path {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) {
				return
			}
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	box := image.Rect(
		int(math.Floor(math.Max(minX, -1))), int(math.Floor(math.Max(minY, -1))),
		int(math.Ceil(math.Min(maxX, float64(r.Img.Rect.Max.X+1)))), int(math.Ceil(math.Min(maxY, float64(r.Img.Rect.Max.Y+1)))),
	).Intersect(r.Img.Bounds())
	if box.Empty() {
		return
	}

	ox, oy := float64(box.Min.X), float64(box.Min.Y)
	r.z.Reset(box.Dx(), box.Dy())
	r.z.DrawOp = stddraw.Over
	for _, path := range paths {
		if len(path) < 3 {
			continue
		}
		r.z.MoveTo(float32(path[0].X-ox), float32(path[0].Y-oy))
		for _, p := range path[1:] {
			r.z.LineTo(float32(p.X-ox), float32(p.Y-oy))
		}
		r.z.ClosePath()
	}
	r.z.Draw(r.Img, box, image.NewUniform(c), image.Point{})
}

// Text draws s centered on at with the 7x13 fixed face, scaled to size.
func (r *RasterSurface) Text(at Point, s string, fill string, size float64) {
	if s == "" {
		return
	}
	c, err := ParseHex(fill)
	if err != nil {
		return
	}
	face := basicfont.Face7x13
	adv := font.MeasureString(face, s).Ceil()
	glyphs := image.NewRGBA(image.Rect(0, 0, adv, face.Height))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)

	k := size * r.Scale / float64(face.Height)
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return
	}
	w, h := float64(adv)*k, float64(face.Height)*k
	cx, cy := at.X*r.Scale, at.Y*r.Scale
	dst := image.Rect(
		int(math.Round(cx-w/2)), int(math.Round(cy-h/2)),
		int(math.Round(cx+w/2)), int(math.Round(cy+h/2)),
	)
	if dst.Intersect(r.Img.Bounds()).Empty() {
		return
	}
	xdraw.ApproxBiLinear.Scale(r.Img, dst, glyphs, glyphs.Bounds(), xdraw.Over, nil)
}

// EncodePNG writes the image as PNG.
func (r *RasterSurface) EncodePNG(w io.Writer) error {
	return png.Encode(w, r.Img)
}
