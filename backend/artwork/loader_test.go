package artwork

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestLoader(cache *ImageCache) *Loader {
	return NewLoader(Options{
		FetchRetries: 0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
		Cache:        cache,
	})
}

func TestLoadInline(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(testPNG(t, 4, 3))
	tests := []struct {
		name string
		ref  string
	}{
		{"data URI", "data:image/png;base64," + encoded},
		{"data URI without mime", "data:;base64," + encoded},
		{"bare base64", encoded},
		{"base64 with line breaks", encoded[:10] + "\n" + encoded[10:]},
	}
	l := newTestLoader(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := l.Load(context.Background(), tt.ref)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if w, h := a.Size(); w != 4 || h != 3 {
				t.Errorf("Size = %dx%d, want 4x3", w, h)
			}
			if a.Ref != tt.ref {
				t.Errorf("Ref = %q, want %q", a.Ref, tt.ref)
			}
		})
	}
}

func TestLoadInlineFailures(t *testing.T) {
	notAnImage := base64.StdEncoding.EncodeToString([]byte("definitely not an image"))
	tests := []struct {
		name    string
		ref     string
		wantErr error
	}{
		{"empty", "", ErrEmptyRef},
		{"blank", "   ", ErrEmptyRef},
		{"no separator", "data:image/png;base64", ErrMalformedData},
		{"bad base64", "data:image/png;base64,@@@@", ErrMalformedData},
		{"empty payload", "data:image/png;base64,", ErrEmptyPayload},
		{"plain text", "cover art: please!", ErrUnsupportedRef},
		{"decodable garbage", notAnImage, image.ErrFormat},
	}
	l := newTestLoader(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := l.Load(context.Background(), tt.ref)
			if a != nil {
				t.Error("expected no artwork on failure")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRemote(t *testing.T) {
	body := testPNG(t, 8, 8)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/cover.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cache := &ImageCache{MinSize: 1, MaxSize: 4, DefaultTTL: time.Minute}
	cache.Init(context.Background(), 0)
	l := newTestLoader(cache)

	a, err := l.Load(context.Background(), srv.URL+"/cover.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w, h := a.Size(); w != 8 || h != 8 {
		t.Errorf("Size = %dx%d, want 8x8", w, h)
	}

	// second load is served from the memo
	if _, err := l.Load(context.Background(), srv.URL+"/cover.png"); err != nil {
		t.Fatalf("cached Load: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}

	_, err = l.Load(context.Background(), srv.URL+"/missing.png")
	if !errors.Is(err, ErrUnexpectedReply) {
		t.Errorf("404: err = %v, want ErrUnexpectedReply", err)
	}
	if cache.Has(srv.URL + "/missing.png") {
		t.Error("failed load should not be cached")
	}
}

func TestLoadRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/x.png"
	srv.Close()

	if _, err := newTestLoader(nil).Load(context.Background(), url); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestLoadRemoteCancelled(t *testing.T) {
	body := testPNG(t, 2, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestLoader(nil).Load(ctx, srv.URL); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, testPNG(t, 5, 5), 0644); err != nil {
		t.Fatal(err)
	}
	a, err := newTestLoader(nil).Load(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w, _ := a.Size(); w != 5 {
		t.Errorf("width = %d, want 5", w)
	}

	if _, err := newTestLoader(nil).Load(context.Background(), "file://"+path+".missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadScalesAndComputesAccent(t *testing.T) {
	ref := "data:image/png;base64," + base64.StdEncoding.EncodeToString(testPNG(t, 100, 50))
	l := NewLoader(Options{MaxSizePx: 20, AccentColor: true})
	a, err := l.Load(context.Background(), ref)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if w, h := a.Size(); w != 20 || h != 10 {
		t.Errorf("Size = %dx%d, want 20x10", w, h)
	}
	if len(a.Accent) != 7 || a.Accent[0] != '#' {
		t.Errorf("Accent = %q, want #RRGGBB", a.Accent)
	}
}
