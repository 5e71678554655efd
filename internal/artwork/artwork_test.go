package artwork

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"
)

func redPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestCacheGetSet(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	const url = "https://img.test/a.jpg"

	if _, ok := cache.Get(url, 20, 10); ok {
		t.Error("expected cache miss")
	}
	if err := cache.Set(url, 20, 10, "art"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, ok := cache.Get(url, 20, 10); !ok || got != "art" {
		t.Errorf("Get = %q, %v", got, ok)
	}
	if _, ok := cache.Get(url, 10, 10); ok {
		t.Error("different size should miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	const url = "https://img.test/old.jpg"
	if err := cache.Set(url, 20, 10, "art"); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(cache.path(url, 20, 10), old, old); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Get(url, 20, 10); ok {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(cache.path(url, 20, 10)); !os.IsNotExist(err) {
		t.Error("expired entry not removed")
	}
}

func TestCacheClearAndSize(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	_ = cache.Set("a", 20, 10, "short")
	_ = cache.Set("b", 20, 10, strings.Repeat("x", 1000))

	size, err := cache.Size()
	if err != nil || size < 1000 {
		t.Fatalf("Size = %d, %v", size, err)
	}
	if s := cache.SizeString(); !strings.HasSuffix(s, "kB") {
		t.Errorf("SizeString = %q", s)
	}
	if err := cache.Clear(); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.Get("a", 20, 10); ok {
		t.Error("expected miss after clear")
	}
	if size, _ := cache.Size(); size != 0 {
		t.Errorf("size after clear = %d", size)
	}
}

func TestConvertToANSI(t *testing.T) {
	ansi, err := ConvertToANSI(redPNG(t, 10, 10), 5, 3)
	if err != nil {
		t.Fatalf("ConvertToANSI: %v", err)
	}
	lines := strings.Split(ansi, "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d", len(lines))
	}
	if strings.Count(lines[0], "▀") != 5 {
		t.Errorf("cells in first line = %d", strings.Count(lines[0], "▀"))
	}
	if !strings.Contains(ansi, "\x1b[38;5;196m") {
		t.Error("expected red foreground")
	}
}

func TestConvertToANSIRejectsGarbage(t *testing.T) {
	if _, err := ConvertToANSI([]byte("not an image"), 5, 5); err == nil {
		t.Fatal("expected an error")
	}
}

func TestRendererUsesCache(t *testing.T) {
	cache, err := NewCache(t.TempDir(), 0)
	if err != nil {
		t.Fatal(err)
	}
	r := NewRenderer(cache, 4, 2, nil)
	const url = "https://img.test/red.png"

	first := r.Render(url, redPNG(t, 8, 8))
	if !strings.Contains(first, "▀") {
		t.Fatalf("not rendered: %q", first)
	}
	if got, ok := cache.Get(url, 4, 2); !ok || got != first {
		t.Fatal("rendering not cached")
	}

	// A fresh renderer finds the cached text without decoding.
	r2 := NewRenderer(cache, 4, 2, nil)
	if got := r2.Render(url, []byte("garbage")); got != first {
		t.Errorf("cached rendering not used")
	}
}

func TestRendererPlaceholder(t *testing.T) {
	r := NewRenderer(nil, 6, 4, nil)
	for _, tc := range []struct {
		name string
		url  string
		data []byte
	}{
		{"no url", "", []byte("x")},
		{"no data", "https://img.test/x.png", nil},
		{"bad data", "https://img.test/y.png", []byte("x")},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Render(tc.url, tc.data); got != Placeholder(6, 4) {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestPlaceholder(t *testing.T) {
	ph := Placeholder(20, 10)
	if !strings.Contains(ph, "♪") || !strings.HasPrefix(ph, "┌") {
		t.Errorf("placeholder = %q", ph)
	}
	if n := len(strings.Split(ph, "\n")); n != 10 {
		t.Errorf("height = %d", n)
	}
}

func TestRgbTo256(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    int
	}{
		{0, 0, 0, 16},
		{255, 255, 255, 231},
		{255, 0, 0, 196},
		{0, 255, 0, 46},
		{0, 0, 255, 21},
		{128, 128, 128, 244},
	}
	for _, tt := range tests {
		if got := rgbTo256(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("rgbTo256(%d,%d,%d) = %d, want %d", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}
