package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	MaxImageBytes  = 5 * 1024 * 1024
	ThumbnailWidth = 200
)

var (
	ErrNoImage          = errors.New("no image provided")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image exceeds 5MB")
)

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DecodeDataURL accepts "data:image/...;base64,<payload>" or bare base64 and
// returns the bytes with their sniffed content type.
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", ErrNoImage
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.Contains(s[:i], ";base64") {
			return nil, "", ErrUnsupportedImage
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, "", fmt.Errorf("decode base64 image: %w", err)
		}
	}
	if len(data) == 0 {
		return nil, "", ErrNoImage
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrImageTooLarge
	}
	ct := http.DetectContentType(data)
	if _, ok := imageExt[ct]; !ok {
		return nil, "", ErrUnsupportedImage
	}
	return data, ct, nil
}

// Thumbnail scales an image to width, keeping the aspect ratio, and encodes
// it as JPEG.
func Thumbnail(data []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func thumbnailName(name string) string {
	base := path.Base(name)
	return path.Join(path.Dir(name), "thumbnails", strings.TrimSuffix(base, path.Ext(base))+".jpg")
}

// Saved are the URLs of an uploaded item image.
type Saved struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// SaveItemImage stores a data-URL image and its thumbnail under items/.
func SaveItemImage(ctx context.Context, store ImageStore, dataURL string) (Saved, error) {
	data, ct, err := DecodeDataURL(dataURL)
	if err != nil {
		return Saved{}, err
	}
	name := "items/" + uuid.NewString() + imageExt[ct]
	url, err := store.Put(ctx, name, ct, data)
	if err != nil {
		return Saved{}, err
	}
	saved := Saved{URL: url}

	thumb, err := Thumbnail(data, ThumbnailWidth)
	if err != nil {
		// gif/webp may not decode; the original is still usable
		return saved, nil
	}
	if saved.ThumbnailURL, err = store.Put(ctx, thumbnailName(name), "image/jpeg", thumb); err != nil {
		return saved, nil
	}
	return saved, nil
}
