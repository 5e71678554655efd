// Package artwork turns the cover image of the current track into ANSI text
// and keeps the result on disk so a track seen before renders instantly.
package artwork

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

var ErrInvalid = errors.New("invalid artwork data")

const defaultMaxAge = 30 * 24 * time.Hour

// Cache stores rendered covers keyed by image URL and cell size.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache opens the cache in dir, or in the user cache dir when dir is
// empty.
func NewCache(dir string, maxAge time.Duration) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("resolve cache dir: %w", err)
		}
		dir = filepath.Join(base, "knob", "artwork")
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, maxAge: maxAge}, nil
}

func (c *Cache) Dir() string { return c.dir }

func cacheKey(url string, width, height int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%dx%d", url, width, height)))
	return hex.EncodeToString(sum[:])[:16]
}

func (c *Cache) path(url string, width, height int) string {
	return filepath.Join(c.dir, cacheKey(url, width, height)+".ansi")
}

// Get returns a cached rendering unless it expired.
func (c *Cache) Get(url string, width, height int) (string, bool) {
	p := c.path(url, width, height)
	info, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		_ = os.Remove(p)
		return "", false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *Cache) Set(url string, width, height int, ansi string) error {
	return os.WriteFile(c.path(url, width, height), []byte(ansi), 0o644)
}

// Clear removes every cached rendering.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".ansi") {
			_ = os.Remove(filepath.Join(c.dir, e.Name()))
		}
	}
	return nil
}

// Size returns the bytes used by cached renderings.
func (c *Cache) Size() (int64, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".ansi") {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total, nil
}

// SizeString is Size formatted for people, e.g. "1.2 MB".
func (c *Cache) SizeString() string {
	n, err := c.Size()
	if err != nil {
		return "unknown"
	}
	return humanize.Bytes(uint64(n))
}

// Renderer converts covers at a fixed cell size and remembers the last one,
// so repeated frames of the same track cost nothing.
type Renderer struct {
	cache  *Cache
	width  int
	height int
	logger *slog.Logger

	mu      sync.Mutex
	lastURL string
	last    string
}

// NewRenderer returns a renderer; cache may be nil.
func NewRenderer(cache *Cache, width, height int, logger *slog.Logger) *Renderer {
	if width <= 0 {
		width = 20
	}
	if height <= 0 {
		height = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{cache: cache, width: width, height: height, logger: logger}
}

// Render returns the ANSI text for the cover at url. Without data, or when
// the data cannot be decoded, a placeholder is returned.
func (r *Renderer) Render(url string, data []byte) string {
	if url == "" || len(data) == 0 {
		return Placeholder(r.width, r.height)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if url == r.lastURL {
		return r.last
	}
	if r.cache != nil {
		if s, ok := r.cache.Get(url, r.width, r.height); ok {
			r.lastURL, r.last = url, s
			return s
		}
	}
	s, err := ConvertToANSI(data, r.width, r.height)
	if err != nil {
		r.logger.Debug("cover not rendered", slog.String("url", url), slog.String("size", humanize.Bytes(uint64(len(data)))), slog.Any("err", err))
		return Placeholder(r.width, r.height)
	}
	if r.cache != nil {
		if err := r.cache.Set(url, r.width, r.height, s); err != nil {
			r.logger.Warn("cache cover", slog.Any("err", err))
		}
	}
	r.lastURL, r.last = url, s
	return s
}

// ConvertToANSI draws the image with upper half blocks, two pixel rows per
// terminal line, using the 256 color palette.
func ConvertToANSI(data []byte, width, height int) (string, error) {
	if width <= 0 {
		width = 20
	}
	if height <= 0 {
		height = 10
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	iw, ih := b.Dx(), b.Dy()
	if iw == 0 || ih == 0 {
		return "", ErrInvalid
	}

	rows := height * 2
	at := func(x, y int) int {
		sx := min(x*iw/width, iw-1)
		sy := min(y*ih/rows, ih-1)
		cr, cg, cb, _ := img.At(b.Min.X+sx, b.Min.Y+sy).RGBA()
		return rgbTo256(uint8(cr>>8), uint8(cg>>8), uint8(cb>>8))
	}

	var out strings.Builder
	for line := 0; line < height; line++ {
		for x := 0; x < width; x++ {
			fmt.Fprintf(&out, "\x1b[38;5;%dm\x1b[48;5;%dm▀", at(x, line*2), at(x, line*2+1))
		}
		out.WriteString("\x1b[0m")
		if line < height-1 {
			out.WriteByte('\n')
		}
	}
	return out.String(), nil
}

// rgbTo256 maps a color to the nearest xterm palette index.
func rgbTo256(r, g, b uint8) int {
	if r == g && g == b {
		switch {
		case r < 8:
			return 16
		case r > 248:
			return 231
		default:
			return int((r-8)/10) + 232
		}
	}
	ri := int(r) * 5 / 255
	gi := int(g) * 5 / 255
	bi := int(b) * 5 / 255
	return 16 + 36*ri + 6*gi + bi
}

// Placeholder is a framed note symbol of the given size.
func Placeholder(width, height int) string {
	width = max(width, 3)
	height = max(height, 3)
	inner := width - 2

	var out strings.Builder
	out.WriteString("┌" + strings.Repeat("─", inner) + "┐\n")
	for y := 1; y < height-1; y++ {
		if y == height/2 {
			pad := (inner - 1) / 2
			out.WriteString("│" + strings.Repeat(" ", pad) + "♪" + strings.Repeat(" ", inner-pad-1) + "│\n")
			continue
		}
		out.WriteString("│" + strings.Repeat(" ", inner) + "│\n")
	}
	out.WriteString("└" + strings.Repeat("─", inner) + "┘")
	return out.String()
}
