package analyzer

import (
	"fmt"
	"net/http"
)

// Options carries what the individual detector variants need.
type Options struct {
	Endpoint      string       // http: inference service URL
	HTTPClient    *http.Client // http: nil means http.DefaultClient
	ModelPath     string       // onnx: exported YOLO model
	BubbleClassID int          // contrast: class id reported for every region
}

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string, opts Options) (Detector, error) {
	switch variant {
	case "http", "":
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("http detector requires an inference endpoint")
		}
		return NewHTTPDetector(opts.Endpoint, opts.HTTPClient), nil
	case "contrast":
		return NewContrastDetector(opts.BubbleClassID), nil
	case "onnx":
		det, err := NewONNXDetector(opts.ModelPath)
		if err != nil {
			return nil, err
		}
		return det, nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
