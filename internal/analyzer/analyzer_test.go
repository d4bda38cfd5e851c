package analyzer

import (
	"context"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestContrastDetector(t *testing.T) {
	// Dark page with a white rectangle (bubble interior) and a white strip on
	// the left edge (background touching the border).
	img := image.NewGray(image.Rect(0, 0, 200, 200))

	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}

	for y := 50; y < 150; y++ {
		for x := 50; x < 150; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	for y := 0; y < 200; y++ {
		for x := 0; x < 30; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	detector := NewContrastDetector(7)
	detections, err := detector.Detect(context.Background(), img, 0.4)

	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if len(detections) != 1 {
		t.Fatalf("Expected exactly one detection, got %d", len(detections))
	}

	det := detections[0]
	if det.Box != image.Rect(50, 50, 150, 150) {
		t.Errorf("Unexpected box: %v", det.Box)
	}
	if det.ClassID != 7 {
		t.Errorf("Expected class 7, got %d", det.ClassID)
	}
	if det.Confidence != 1.0 {
		t.Errorf("Expected full fill confidence, got %.2f", det.Confidence)
	}
}

func TestContrastDetector_OffsetBounds(t *testing.T) {
	page := image.NewGray(image.Rect(0, 0, 200, 300))
	for y := 130; y < 160; y++ {
		for x := 40; x < 90; x++ {
			page.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	// The lower two thirds of the page, with its origin at y=100.
	sub := page.SubImage(image.Rect(0, 100, 200, 300))

	detections, err := NewContrastDetector(0).Detect(context.Background(), sub, 0.4)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(detections) != 1 {
		t.Fatalf("Expected one detection, got %d", len(detections))
	}
	if want := image.Rect(40, 30, 90, 60); detections[0].Box != want {
		t.Errorf("Box = %v; want origin-relative %v", detections[0].Box, want)
	}
}

func TestContrastDetector_Threshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 200, 200))

	// An L shape fills three quarters of its bounding box.
	for y := 40; y < 140; y++ {
		for x := 40; x < 140; x++ {
			if x < 90 || y >= 90 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	detector := NewContrastDetector(0)

	low, _ := detector.Detect(context.Background(), img, 0.4)
	high, _ := detector.Detect(context.Background(), img, 0.9)

	if len(low) != 1 {
		t.Errorf("Expected the L shape at 0.4, got %d detections", len(low))
	}
	if len(high) != 0 {
		t.Errorf("Expected nothing at 0.9, got %d detections", len(high))
	}
}

func TestDetectorRegistry(t *testing.T) {
	tests := []struct {
		variant string
		opts    Options
		wantErr bool
	}{
		{"contrast", Options{}, false},
		{"http", Options{Endpoint: "http://localhost:5000/predict"}, false},
		{"", Options{Endpoint: "http://localhost:5000/predict"}, false}, // default
		{"http", Options{}, true},
		{"onnx", Options{ModelPath: "does/not/exist.onnx"}, true},
		{"invalid", Options{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			detector, err := NewDetector(tt.variant, tt.opts)

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if detector == nil {
					t.Error("Expected detector, got nil")
				}
			}
		})
	}
}

func TestHTTPDetector(t *testing.T) {
	var gotConf string
	var gotFile bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotConf = r.FormValue("conf")
		if f, _, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			gotFile = len(data) > 0
			f.Close()
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"detections": [
			{"class_id": 0, "box": [10.7, 100.2, 500.9, 200.8], "confidence": 0.91},
			{"class_id": 1, "box": [0, 0, 10, 10], "confidence": 0.88},
			{"class_id": 0, "box": [0, 300, 10, 400], "confidence": 0.2}
		]}`)
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL+"/predict", server.Client())
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	detections, err := detector.Detect(context.Background(), img, 0.4)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if gotConf != "0.4" {
		t.Errorf("Expected conf field 0.4, got %q", gotConf)
	}
	if !gotFile {
		t.Error("Expected page image in the file field")
	}

	if len(detections) != 2 {
		t.Fatalf("Expected 2 detections above threshold, got %d", len(detections))
	}
	if detections[0].Box != image.Rect(10, 100, 500, 200) {
		t.Errorf("Expected truncated box, got %v", detections[0].Box)
	}
	if detections[1].ClassID != 1 {
		t.Errorf("Expected class 1 passed through, got %d", detections[1].ClassID)
	}
}

func TestHTTPDetector_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "model crashed", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	detector := NewHTTPDetector(server.URL+"/predict", server.Client())

	if err := detector.CheckHealth(context.Background()); err != nil {
		t.Errorf("CheckHealth failed: %v", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if _, err := detector.Detect(context.Background(), img, 0.4); err == nil {
		t.Error("Expected error on status 500")
	}
}
