package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// HTTPDetector runs inference through an external model service. The page
// is posted as a PNG in the multipart field "file".
type HTTPDetector struct {
	endpoint string
	client   *http.Client
}

func NewHTTPDetector(endpoint string, client *http.Client) *HTTPDetector {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDetector{
		endpoint: endpoint,
		client:   client,
	}
}

type wireDetection struct {
	ClassID    int        `json:"class_id"`
	Box        [4]float64 `json:"box"` // x1, y1, x2, y2
	Confidence float64    `json:"confidence"`
}

// Detect sends one page to the service. Detections under threshold are
// dropped here as well, whatever the service did with the conf field.
func (d *HTTPDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "page.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	if err := writer.WriteField("conf", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("write conf field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []wireDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	detections := make([]Detection, 0, len(result.Detections))
	for _, wd := range result.Detections {
		if wd.Confidence < threshold {
			continue
		}
		detections = append(detections, Detection{
			ClassID:    wd.ClassID,
			Box:        image.Rect(int(wd.Box[0]), int(wd.Box[1]), int(wd.Box[2]), int(wd.Box[3])),
			Confidence: wd.Confidence,
		})
	}
	return detections, nil
}

// CheckHealth probes the service's /health route, a sibling of the
// prediction route.
func (d *HTTPDetector) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	u.Path = path.Join(path.Dir(u.Path), "health")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
