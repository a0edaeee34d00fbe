package render

// Point is a canvas position in CSS pixels.
type Point struct {
	X, Y float64
}

// Surface is the drawing capability the spiral is rendered onto. Colors are
// CSS hex strings.
type Surface interface {
	FillPolygon(pts []Point, fill string)
	StrokePolyline(pts []Point, stroke string, width float64)
	Text(at Point, s string, fill string, size float64)
}

// Theme holds the non-event colors.
type Theme struct {
	Background    string
	DayEven       string
	DayOdd        string
	Grid          string
	MidnightLine  string
	MonthLine     string
	Label         string
	LabelSize     float64
	GridWidth     float64
	MidnightWidth float64
}

func DefaultTheme() Theme {
	return Theme{
		Background:    "#101018",
		DayEven:       "#1d1d2b",
		DayOdd:        "#25253a",
		Grid:          "#34344d",
		MidnightLine:  "#8a8aa8",
		MonthLine:     "#e0c060",
		Label:         "#c8c8dc",
		LabelSize:     11,
		GridWidth:     0.5,
		MidnightWidth: 1.5,
	}
}
