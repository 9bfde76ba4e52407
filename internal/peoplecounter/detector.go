package peoplecounter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

var ErrDetector = errors.New("detector request failed")

type Detection struct {
	X     int      `json:"x"`
	Y     int      `json:"y"`
	W     int      `json:"w"`
	H     int      `json:"h"`
	Score *float64 `json:"score"`
}

// Detector finds people in a JPEG frame.
type Detector interface {
	Detect(ctx context.Context, jpeg []byte) ([]Detection, error)
}

// HTTPDetector posts frames as multipart field "frame" and expects
// {"boxes":[...]} back.
type HTTPDetector struct {
	URL     string
	Timeout time.Duration
}

func (d HTTPDetector) Detect(ctx context.Context, jpeg []byte) ([]Detection, error) {
	timeout := d.Timeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	a := fiber.Post(d.URL).
		Timeout(timeout).
		FileData(&fiber.FormFile{Fieldname: "frame", Name: "frame.jpg", Content: jpeg}).
		MultipartForm(nil)

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrDetector, errors.Join(errs...))
	}
	if code != fiber.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrDetector, code)
	}
	var out struct {
		Boxes []Detection `json:"boxes"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrDetector, err)
	}
	return out.Boxes, nil
}
