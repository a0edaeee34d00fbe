package render

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"math"
	"strconv"
	"strings"

	"spiralcal/internal/model"
)

// ColorMode decides the display color of an event.
type ColorMode int

const (
	// ColorModeEvent uses the event's own color, falling back to a seeded one.
	ColorModeEvent ColorMode = iota
	// ColorModeCalendar gives every calendar one hue.
	ColorModeCalendar
	// ColorModeSeeded derives a hue from the event id.
	ColorModeSeeded
	// ColorModeMonochrome draws everything in one ink.
	ColorModeMonochrome
)

func (m ColorMode) String() string {
	switch m {
	case ColorModeEvent:
		return "event"
	case ColorModeCalendar:
		return "calendar"
	case ColorModeSeeded:
		return "seeded"
	case ColorModeMonochrome:
		return "monochrome"
	}
	return fmt.Sprintf("ColorMode(%d)", int(m))
}

// ParseColorMode maps config strings to a mode; unknown values are "event".
func ParseColorMode(s string) ColorMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "calendar":
		return ColorModeCalendar
	case "seeded", "random":
		return ColorModeSeeded
	case "monochrome", "mono":
		return ColorModeMonochrome
	}
	return ColorModeEvent
}

const monochromeInk = "#3c3c46"

// DisplayColor is the color policy: a pure function of mode and event.
func DisplayColor(mode ColorMode, ev model.Event) string {
	switch mode {
	case ColorModeEvent:
		if _, err := ParseHex(ev.Color); err == nil {
			return strings.ToLower(ev.Color)
		}
		return SeededColor(ev.PersistentUID)
	case ColorModeCalendar:
		return SeededColor("calendar:" + ev.Calendar)
	case ColorModeSeeded:
		return SeededColor(ev.PersistentUID)
	case ColorModeMonochrome:
		return monochromeInk
	}
	return monochromeInk
}

// SeededColor maps a seed to a saturated, mid-light color.
func SeededColor(seed string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	hue := float64(h.Sum32()%360) / 360
	return HSLToHex(hue, 0.65, 0.55)
}

// HSLToHex converts h, s, l in [0,1] to "#rrggbb".
func HSLToHex(h, s, l float64) string {
	var r, g, b float64
	if s == 0 {
		r, g, b = l, l, l
	} else {
		q := l * (1 + s)
		if l >= 0.5 {
			q = l + s - l*s
		}
		p := 2*l - q
		r = hueToRGB(p, q, h+1.0/3)
		g = hueToRGB(p, q, h)
		b = hueToRGB(p, q, h-1.0/3)
	}
	return fmt.Sprintf("#%02x%02x%02x", to8(r), to8(g), to8(b))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

func to8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// ParseHex parses "#rgb" or "#rrggbb".
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("render: invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("render: invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
