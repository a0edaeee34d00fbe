package capture

import (
	"context"
	"testing"
	"time"
)

func TestOptions_Normalize(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/spiral", OutputPath: "out.png"}
	if err := o.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.DeviceScale != 1 || o.Timeout != DefaultTimeout {
		t.Errorf("defaults not applied: %+v", o)
	}

	o = Options{URL: "x", OutputPath: "y", Width: 320, Height: 240, DeviceScale: 2, Timeout: time.Second}
	_ = o.normalize()
	if o.Width != 320 || o.Height != 240 || o.DeviceScale != 2 || o.Timeout != time.Second {
		t.Errorf("explicit values overwritten: %+v", o)
	}
}

func TestSpiralPNG_RequiresURLAndOutput(t *testing.T) {
	if err := SpiralPNG(context.Background(), Options{OutputPath: "x.png"}); err == nil {
		t.Error("missing URL should fail")
	}
	if err := SpiralPNG(context.Background(), Options{URL: "http://x"}); err == nil {
		t.Error("missing output should fail")
	}
}
