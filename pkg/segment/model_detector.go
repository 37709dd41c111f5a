package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"literature-agent-be/pkg/figure"
)

// ModelDetector calls an external figure-separator service.
//
//	POST {BaseURL}/detect  (multipart field "image")
//	200 [{"x":0,"y":0,"w":100,"h":80,"conf":0.93}, ...]
type ModelDetector struct {
	BaseURL string
	Client  *http.Client
}

var _ Detector = &ModelDetector{}

func NewModelDetector(baseURL string, timeout time.Duration) *ModelDetector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ModelDetector{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

type detection struct {
	X    int     `json:"x"`
	Y    int     `json:"y"`
	W    int     `json:"w"`
	H    int     `json:"h"`
	Conf float64 `json:"conf"`
}

func (d *ModelDetector) Name() figure.Method {
	return figure.MethodModel
}

func (d *ModelDetector) Detect(ctx context.Context, src Source) ([]Region, error) {
	if d == nil || d.BaseURL == "" {
		return nil, ErrModelUnavailable
	}

	body, contentType, err := d.encode(src.Path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/detect", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var detections []detection
	if err := json.Unmarshal(bodyBytes, &detections); err != nil {
		return nil, fmt.Errorf("malformed detector output: %w", err)
	}

	var bounds image.Rectangle
	if src.Image != nil {
		bounds = src.Image.Bounds()
	}

	regions := make([]Region, 0, len(detections))
	for _, det := range detections {
		if det.W <= 0 || det.H <= 0 || det.Conf < 0 || det.Conf > 1 {
			return nil, fmt.Errorf("malformed detector output: invalid box %+v", det)
		}
		rect := image.Rect(det.X, det.Y, det.X+det.W, det.Y+det.H)
		if !bounds.Empty() {
			rect = rect.Intersect(bounds)
			if rect.Empty() {
				continue
			}
		}
		regions = append(regions, Region{Rect: rect, Confidence: det.Conf})
	}
	return regions, nil
}

func (d *ModelDetector) encode(path string) (io.Reader, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open figure image: %w", err)
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy image: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
