package peoplecounter

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"vienna-backend/internal/logging"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
)

const noImageMsg = "No image provided"

var errNoImage = errors.New("no image provided")

type Counter struct {
	Detector     Detector
	MaxWidth     int
	IoUThreshold float64
}

type countResponse struct {
	OK    bool  `json:"ok"`
	Count int   `json:"count"`
	Boxes []Box `json:"boxes"`
}

func failure(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"ok": false, "error": msg})
}

// readFrame takes the multipart "frame" file or a base64 "image" field,
// with or without a data URL header.
func readFrame(c *fiber.Ctx) ([]byte, error) {
	if fh, err := c.FormFile("frame"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, errNoImage
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	var body struct {
		Image string `json:"image"`
	}
	if err := c.BodyParser(&body); err != nil || body.Image == "" {
		return nil, errNoImage
	}
	b64 := body.Image
	if strings.HasPrefix(b64, "data:image") {
		if i := strings.IndexByte(b64, ','); i >= 0 {
			b64 = b64[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errNoImage
	}
	return raw, nil
}

// prepare decodes the frame, shrinks it to maxWidth and re-encodes it as JPEG.
func prepare(data []byte, maxWidth int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errNoImage
	}
	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Box)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Count suppresses overlapping detections. Missing scores count as 1.
func (p Counter) Count(dets []Detection) []Box {
	boxes := make([]Box, len(dets))
	scores := make([]float64, len(dets))
	for i, d := range dets {
		boxes[i] = Box{X: d.X, Y: d.Y, W: d.W, H: d.H}
		scores[i] = 1.0
		if d.Score != nil {
			scores[i] = *d.Score
		}
	}
	keep := NMS(boxes, scores, p.IoUThreshold)
	out := make([]Box, 0, len(keep))
	for _, i := range keep {
		out = append(out, boxes[i])
	}
	return out
}

// POST /api/people-counter/count
func (p Counter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := readFrame(c)
		if err == nil {
			data, err = prepare(data, p.MaxWidth)
		}
		if errors.Is(err, errNoImage) {
			return failure(c, fiber.StatusBadRequest, noImageMsg)
		}
		if err != nil {
			logging.LogError("peoplecounter", "Handler", "prepare frame", nil, err)
			return failure(c, fiber.StatusInternalServerError, "could not process the frame")
		}

		dets, err := p.Detector.Detect(c.UserContext(), data)
		if err != nil {
			logging.LogError("peoplecounter", "Handler", "detect", nil, err)
			return failure(c, fiber.StatusBadGateway, "detector unavailable")
		}
		boxes := p.Count(dets)
		return c.JSON(countResponse{OK: true, Count: len(boxes), Boxes: boxes})
	}
}
