package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.NRGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeDataURL(t *testing.T) {
	raw := pngBytes(t, 4, 4)
	b64 := base64.StdEncoding.EncodeToString(raw)

	cases := []struct {
		name string
		in   string
		err  error
	}{
		{"data url", "data:image/png;base64," + b64, nil},
		{"bare base64", b64, nil},
		{"empty", "  ", ErrNoImage},
		{"not base64 data url", "data:image/png," + b64, ErrUnsupportedImage},
		{"text payload", base64.StdEncoding.EncodeToString([]byte("hello there")), ErrUnsupportedImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, ct, err := DecodeDataURL(tc.in)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("expected %v, got %v", tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if ct != "image/png" || !bytes.Equal(data, raw) {
				t.Fatalf("got %s, %d bytes", ct, len(data))
			}
		})
	}
}

func TestThumbnailKeepsAspect(t *testing.T) {
	out, err := Thumbnail(pngBytes(t, 800, 400), ThumbnailWidth)
	if err != nil {
		t.Fatal(err)
	}
	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("thumbnail is %dx%d, want 200x100", b.Dx(), b.Dy())
	}

	small, err := Thumbnail(pngBytes(t, 50, 20), ThumbnailWidth)
	if err != nil {
		t.Fatal(err)
	}
	img, _ = imaging.Decode(bytes.NewReader(small))
	if img.Bounds().Dx() != 50 {
		t.Fatalf("small images must not be upscaled, got width %d", img.Bounds().Dx())
	}
}

func TestSaveItemImageLocal(t *testing.T) {
	dir := t.TempDir()
	store := LocalStore{Dir: dir, BaseURL: "/images/"}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t, 400, 400))

	saved, err := SaveItemImage(context.Background(), store, dataURL)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(saved.URL, "/images/items/") || !strings.HasSuffix(saved.URL, ".png") {
		t.Fatalf("unexpected url %s", saved.URL)
	}
	if !strings.Contains(saved.ThumbnailURL, "/items/thumbnails/") || !strings.HasSuffix(saved.ThumbnailURL, ".jpg") {
		t.Fatalf("unexpected thumbnail url %s", saved.ThumbnailURL)
	}
	rel := strings.TrimPrefix(saved.ThumbnailURL, "/images/")
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store := LocalStore{Dir: t.TempDir(), BaseURL: "/images"}
	for _, name := range []string{"", "../x.png", "/etc/x.png", "a/../../x.png"} {
		if _, err := store.Put(context.Background(), name, "image/png", []byte{1}); err == nil {
			t.Errorf("name %q should be rejected", name)
		}
	}
}
