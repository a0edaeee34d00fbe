// Command spiralcal-view is a desktop window onto the spiral calendar.
//
// Drag to rotate (with inertia), scroll to zoom, shift+scroll to change the
// radius exponent, click an hour to inspect it. Keys: N jumps to now, C
// toggles circle mode, S static mode, O overlay stacking, L hour labels.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"spiralcal/internal/config"
	"spiralcal/internal/geom"
	"spiralcal/internal/gesture"
	appLog "spiralcal/internal/log"
	"spiralcal/internal/model"
	"spiralcal/internal/render"
	"spiralcal/internal/session"
	"spiralcal/internal/store"
)

// clicks shorter than this (radians of drag) still count as a click
const clickSlop = 0.02

type viewer struct {
	ctx     context.Context
	sess    *session.Session
	tracker *gesture.Tracker

	img      *ebiten.Image
	lastKey  string
	dragged  float64
	pressed  bool
	detail   string
	vp       geom.Viewport
	surfaceW int
	surfaceH int
}

func main() {
	configPath := flag.String("config", "/etc/spiralcal/config.yaml", "Path to config file")
	flag.Parse()

	conf, err := config.Load(*configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", *configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []model.Event
	st, err := store.Open(ctx, conf.DBPath)
	if err != nil {
		appLog.Warn("store unavailable, starting empty", "err", err)
	} else {
		defer st.Close()
		if events, err = st.LoadEvents(ctx); err != nil {
			appLog.Warn("load events failed", "err", err)
		}
	}

	vp := conf.Viewport()
	vp.DevicePixelRatio = ebiten.Monitor().DeviceScaleFactor()
	vp = vp.Clamp()
	now := time.Now()
	sess := session.New(conf.State(), vp, geom.ReferenceFor(now), model.NewEventList(events...), conf.SessionOptions())
	sess.RotateToTime(now)

	v := &viewer{
		ctx:     ctx,
		sess:    sess,
		tracker: gesture.NewTracker(sess, gesture.DefaultConfig()),
		vp:      vp,
	}

	ebiten.SetWindowTitle("spiralcal")
	ebiten.SetWindowSize(int(vp.Width), int(vp.Height))
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(v); err != nil {
		appLog.Error("viewer stopped", err)
		os.Exit(1)
	}
}

func (v *viewer) Update() error {
	// cursor is in device pixels, the session works in CSS pixels
	cx, cy := ebiten.CursorPosition()
	x, y := float64(cx)/v.vp.DPR(), float64(cy)/v.vp.DPR()
	angle := gesture.PointerAngle(x, y, v.vp)

	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		v.tracker.DragStart(angle, time.Now())
		v.pressed = true
		v.dragged = 0
	case v.pressed && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		v.dragged += math.Abs(v.tracker.DragMove(angle, time.Now()))
	case v.pressed && inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft):
		v.pressed = false
		if v.dragged < clickSlop {
			v.tracker.Stop()
			v.inspect(x, y)
		} else {
			v.tracker.DragEnd(v.ctx)
		}
	}

	if _, dy := ebiten.Wheel(); dy != 0 {
		factor := math.Pow(1.1, dy)
		st := v.sess.State()
		if ebiten.IsKeyPressed(ebiten.KeyShift) {
			st = gesture.AdjustExponent(st, factor)
		} else {
			st = gesture.Zoom(st, factor)
		}
		v.sess.SetState(st)
	}

	v.handleKeys()
	return nil
}

func (v *viewer) handleKeys() {
	opts := v.sess.Options()
	st := v.sess.State()
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyN):
		v.tracker.Stop()
		v.sess.RotateToTime(time.Now())
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		st.CircleMode = !st.CircleMode
		v.sess.SetState(st)
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		st.StaticMode = !st.StaticMode
		v.sess.SetState(st)
	case inpututil.IsKeyJustPressed(ebiten.KeyO):
		opts.Stacked = !opts.Stacked
		v.sess.SetOptions(opts)
	case inpututil.IsKeyJustPressed(ebiten.KeyL):
		opts.ShowHourNumbers = !opts.ShowHourNumbers
		v.sess.SetOptions(opts)
	case inpututil.IsKeyJustPressed(ebiten.KeyEscape):
		v.sess.ClearSelection()
		v.detail = ""
	}
}

func (v *viewer) inspect(x, y float64) {
	hit, ok := v.sess.HitTest(x, y)
	if !ok {
		v.detail = ""
		return
	}
	d := v.sess.SegmentDetail(hit.SegmentIndex)
	loc := v.sess.Options().Location
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s", d.Start.In(loc).Format("Mon Jan 2 15:04"), d.End.In(loc).Format("15:04"))
	for _, ev := range d.Events {
		fmt.Fprintf(&b, "\n  %s  %s", ev.Start.In(loc).Format("15:04"), ev.Title)
	}
	v.detail = b.String()
}

// frameKey changes whenever anything visible changes.
func (v *viewer) frameKey() string {
	sel, ok := v.sess.Selected()
	return fmt.Sprintf("%d|%+v|%+v|%+v|%v", v.sess.EventsVersion(), v.sess.Settings(), v.vp, sel, ok)
}

func (v *viewer) Draw(screen *ebiten.Image) {
	key := v.frameKey()
	if v.img == nil || key != v.lastKey {
		surface := render.NewRasterSurface(v.surfaceW, v.surfaceH, v.vp.DPR())
		v.sess.Draw(surface)
		b := surface.Img.Bounds()
		if v.img == nil || v.img.Bounds().Dx() != b.Dx() || v.img.Bounds().Dy() != b.Dy() {
			if v.img != nil {
				v.img.Deallocate()
			}
			v.img = ebiten.NewImage(b.Dx(), b.Dy())
		}
		v.img.WritePixels(surface.Img.Pix)
		v.lastKey = key
	}
	screen.DrawImage(v.img, nil)

	if v.detail != "" {
		ebitenutil.DebugPrintAt(screen, v.detail, 8, 8)
	}
}

// Layout works in device pixels so the raster surface maps 1:1.
func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != v.surfaceW || outsideHeight != v.surfaceH {
		v.surfaceW, v.surfaceH = outsideWidth, outsideHeight
		v.vp.Width, v.vp.Height = float64(outsideWidth), float64(outsideHeight)
		v.vp = v.sess.SetViewport(v.vp)
	}
	s := v.vp.DPR()
	return int(math.Ceil(float64(outsideWidth) * s)), int(math.Ceil(float64(outsideHeight) * s))
}
