package main

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"math/rand"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	ipng "github.com/Merovius/truepng/internal/png"
)

func newNoise(seed int64, size int) *noise {
	return &noise{rnd: rand.New(rand.NewSource(seed)), size: size}
}

func TestNoise(t *testing.T) {
	a, _ := newNoise(0, 16).Grid()
	b, _ := newNoise(0, 16).Grid()
	w, h, err := a.Bounds()
	if w != 16 || h != 16 || err != nil {
		t.Fatalf("Bounds() = %d, %d, %v, want 16, 16, <nil>", w, h, err)
	}
	for y := range a {
		for x := range a[y] {
			if a[y][x] != b[y][x] {
				t.Fatalf("pixel (%d, %d) differs for equal seeds", x, y)
			}
			for _, c := range a[y][x] {
				if c == 255 {
					t.Fatalf("pixel (%d, %d) = %v, components must be below 255", x, y, a[y][x])
				}
			}
		}
	}
}

func TestParseCompression(t *testing.T) {
	for _, s := range []string{"default", "best", "speed", "none", "stored"} {
		if _, err := parseCompression(s); err != nil {
			t.Errorf("parseCompression(%q) = %v", s, err)
		}
	}
	if _, err := parseCompression("lzma"); err == nil {
		t.Error("parseCompression(\"lzma\") succeeded")
	}
}

func TestWriteFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.png")
	if err := writeFile(name, newNoise(1, 5), &ipng.Encoder{}); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("written file is not a png: %v", err)
	}
	if cfg.Width != 5 || cfg.Height != 5 {
		t.Errorf("image is %dx%d, want 5x5", cfg.Width, cfg.Height)
	}
}

func decodeRGBA(t *testing.T, r io.Reader) *image.RGBA {
	t.Helper()
	img, err := png.Decode(r)
	if err != nil {
		t.Fatalf("invalid png: %v", err)
	}
	m, ok := img.(*image.RGBA)
	if !ok {
		t.Fatalf("decoded %T, want *image.RGBA", img)
	}
	return m
}

func TestSnapshot(t *testing.T) {
	h := &handler{src: newNoise(0, 8), enc: &ipng.Encoder{Compressor: ipng.Stored{}}}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/snapshot.png", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	want, _ := newNoise(0, 8).Grid()
	m := decodeRGBA(t, rec.Body)
	for y, row := range want {
		for x, px := range row {
			c := m.RGBAAt(x, y)
			if (ipng.RGB{c.R, c.G, c.B}) != px {
				t.Fatalf("pixel (%d, %d) = %v, want %v", x, y, c, px)
			}
		}
	}
}

func TestHandlerErrors(t *testing.T) {
	h := &handler{src: newNoise(0, 1), enc: &ipng.Encoder{}}
	for _, tc := range []struct {
		method, path string
		code         int
	}{
		{"POST", "/snapshot.png", http.StatusMethodNotAllowed},
		{"GET", "/raw", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.code {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, tc.code)
		}
	}

	h = &handler{src: badSource{}, enc: &ipng.Encoder{}}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/snapshot.png", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("malformed grid: status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

type badSource struct{}

func (badSource) Grid() (ipng.Grid, error) { return ipng.Grid{}, nil }

func TestVideo(t *testing.T) {
	srv := httptest.NewServer(&handler{src: newNoise(0, 4), enc: &ipng.Encoder{}})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/video")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	mt, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/x-mixed-replace" {
		t.Fatalf("Content-Type = %q, %v", resp.Header.Get("Content-Type"), err)
	}
	mr := multipart.NewReader(resp.Body, params["boundary"])
	for i := 0; i < 2; i++ {
		part, err := mr.NextPart()
		if err != nil {
			t.Fatalf("part %d: %v", i, err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part %d: Content-Type = %q, want image/png", i, ct)
		}
		if m := decodeRGBA(t, part); m.Bounds().Dx() != 4 {
			t.Errorf("part %d: width = %d, want 4", i, m.Bounds().Dx())
		}
	}
}
