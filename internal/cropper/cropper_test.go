package cropper

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/ivlev/bubblecrop/internal/analyzer"
	"github.com/ivlev/bubblecrop/internal/config"
	"github.com/ivlev/bubblecrop/internal/imageio"
	"github.com/ivlev/bubblecrop/internal/storage"
)

// scriptedDetector returns the same detections for every page.
type scriptedDetector struct {
	detections []analyzer.Detection
	err        error
	calls      int
	threshold  float64
}

func (d *scriptedDetector) Detect(ctx context.Context, img image.Image, threshold float64) ([]analyzer.Detection, error) {
	d.calls++
	d.threshold = threshold
	return d.detections, d.err
}

func bubble(y1, y2 int) analyzer.Detection {
	return analyzer.Detection{ClassID: 0, Box: image.Rect(50, y1, 500, y2), Confidence: 0.9}
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestComputeBands(t *testing.T) {
	boxes := []image.Rectangle{
		image.Rect(0, 100, 10, 200),
		image.Rect(0, 300, 10, 400),
	}

	got := ComputeBands(boxes, 800, 5)
	want := []Band{
		{Index: 1, Top: 95, Bottom: 205},
		{Index: 2, Top: 95, Bottom: 405},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeBands = %v; want %v", got, want)
	}
}

func TestComputeBands_Clamping(t *testing.T) {
	boxes := []image.Rectangle{
		image.Rect(0, 3, 10, 40),
		image.Rect(0, 700, 10, 798),
	}

	got := ComputeBands(boxes, 800, 10)
	want := []Band{
		{Index: 1, Top: 0, Bottom: 50},
		{Index: 2, Top: 0, Bottom: 800},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ComputeBands = %v; want %v", got, want)
	}
}

func TestComputeBands_SharedTop(t *testing.T) {
	boxes := []image.Rectangle{
		image.Rect(0, 120, 10, 130),
		image.Rect(0, 140, 10, 600),
		image.Rect(0, 150, 10, 160),
		image.Rect(0, 400, 10, 450),
	}

	bands := ComputeBands(boxes, 1000, 3)
	for _, b := range bands {
		if b.Top != bands[0].Top {
			t.Errorf("Band %d top %d differs from first band top %d", b.Index, b.Top, bands[0].Top)
		}
	}
}

func TestSortByTop_Stable(t *testing.T) {
	dets := []analyzer.Detection{
		{ClassID: 0, Box: image.Rect(300, 200, 400, 250)},
		{ClassID: 0, Box: image.Rect(0, 100, 10, 150)},
		{ClassID: 0, Box: image.Rect(100, 200, 200, 220)},
	}

	sorted := SortByTop(dets)

	if sorted[0].Box.Min.Y != 100 {
		t.Errorf("Expected topmost first, got %v", sorted[0].Box)
	}
	if sorted[1].Box.Min.X != 300 || sorted[2].Box.Min.X != 100 {
		t.Errorf("Ties should keep detector order, got %v then %v", sorted[1].Box, sorted[2].Box)
	}
	if dets[0].Box.Min.Y != 200 {
		t.Error("SortByTop must not reorder its input")
	}
}

func TestFilterClass(t *testing.T) {
	dets := []analyzer.Detection{
		{ClassID: 2, Box: image.Rect(0, 0, 1, 1)},
		{ClassID: 1, Box: image.Rect(0, 5, 1, 6)},
		{ClassID: 2, Box: image.Rect(0, 9, 1, 10)},
	}

	kept := FilterClass(dets, 2)
	if len(kept) != 2 || kept[0].Box.Min.Y != 0 || kept[1].Box.Min.Y != 9 {
		t.Errorf("Unexpected filter result %v", kept)
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		prefix string
		index  int
		want   string
	}{
		{"", 1, "bubble_1.png"},
		{"chapter1_page01", 3, "chapter1_page01_bubble_3.png"},
	}

	for _, tt := range tests {
		if got := FileName(tt.prefix, tt.index, "png"); got != tt.want {
			t.Errorf("FileName(%q, %d) = %q; want %q", tt.prefix, tt.index, got, tt.want)
		}
	}
}

func TestCropPage_Scenario(t *testing.T) {
	cfg := &config.Config{Confidence: 0.4, Padding: 5, OutputFormat: "png", JPEGQuality: 95}
	det := &scriptedDetector{detections: []analyzer.Detection{
		bubble(300, 400),
		{ClassID: 3, Box: image.Rect(0, 0, 1000, 50), Confidence: 0.99},
		bubble(100, 200),
	}}
	log, _ := test.NewNullLogger()
	c := NewCropper(det, storage.LocalSink{}, cfg, 0, log)

	out := filepath.Join(t.TempDir(), "out")
	img := image.NewRGBA(image.Rect(0, 0, 1000, 800))

	n, err := c.CropPage(context.Background(), img, out, "")
	if err != nil {
		t.Fatalf("CropPage failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 bands written, got %d", n)
	}
	if det.calls != 1 || det.threshold != 0.4 {
		t.Errorf("Expected one detector call at 0.4, got %d calls at %v", det.calls, det.threshold)
	}

	if got := listFiles(t, out); !reflect.DeepEqual(got, []string{"bubble_1.png", "bubble_2.png"}) {
		t.Fatalf("Unexpected files %v", got)
	}

	wantHeights := map[string]int{"bubble_1.png": 110, "bubble_2.png": 310}
	for name, h := range wantHeights {
		band, err := imageio.DecodeFile(filepath.Join(out, name))
		if err != nil {
			t.Fatalf("DecodeFile %s: %v", name, err)
		}
		if band.Bounds().Dx() != 1000 || band.Bounds().Dy() != h {
			t.Errorf("%s: expected 1000x%d, got %v", name, h, band.Bounds())
		}
	}
}

func TestCrop_SkippedBandKeepsIndex(t *testing.T) {
	cfg := &config.Config{Confidence: 0.4, Padding: 0, OutputFormat: "png"}
	// The second bubble ends above the shared top, so its band is empty.
	det := &scriptedDetector{detections: []analyzer.Detection{
		bubble(100, 200),
		{ClassID: 0, Box: image.Rectangle{Min: image.Pt(0, 150), Max: image.Pt(10, 90)}, Confidence: 0.8},
		bubble(300, 400),
	}}

	log, _ := test.NewNullLogger()
	c := NewCropper(det, storage.LocalSink{}, cfg, 0, log)
	out := t.TempDir()

	res, err := c.Crop(context.Background(), image.NewGray(image.Rect(0, 0, 400, 600)), out, "vol_p1")
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}

	if res.Written != 2 || len(res.Bands) != 3 {
		t.Fatalf("Expected 2 of 3 bands written, got %d of %d", res.Written, len(res.Bands))
	}
	if !res.Bands[1].Empty() || res.Files[1] != "" {
		t.Errorf("Expected band 2 skipped, got %+v %q", res.Bands[1], res.Files[1])
	}

	want := []string{"vol_p1_bubble_1.png", "vol_p1_bubble_3.png"}
	if got := listFiles(t, out); !reflect.DeepEqual(got, want) {
		t.Errorf("Files = %v; want %v", got, want)
	}
}

func TestCrop_OffsetBounds(t *testing.T) {
	cfg := &config.Config{Confidence: 0.4, Padding: 5, OutputFormat: "png"}
	det := &scriptedDetector{detections: []analyzer.Detection{
		{ClassID: 0, Box: image.Rect(10, 30, 60, 60), Confidence: 0.9},
	}}
	log, _ := test.NewNullLogger()
	c := NewCropper(det, storage.LocalSink{}, cfg, 0, log)

	page := image.NewRGBA(image.Rect(0, 0, 100, 200))
	sub := page.SubImage(image.Rect(0, 100, 100, 200))
	out := t.TempDir()

	res, err := c.Crop(context.Background(), sub, out, "")
	if err != nil {
		t.Fatalf("Crop failed: %v", err)
	}
	if want := []Band{{Index: 1, Top: 25, Bottom: 65}}; !reflect.DeepEqual(res.Bands, want) {
		t.Fatalf("Bands = %v; want %v", res.Bands, want)
	}
	if res.Written != 1 {
		t.Fatalf("Expected 1 band written, got %d", res.Written)
	}

	band, err := imageio.DecodeFile(filepath.Join(out, "bubble_1.png"))
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if band.Bounds().Dx() != 100 || band.Bounds().Dy() != 40 {
		t.Errorf("Expected 100x40 band, got %v", band.Bounds())
	}
}

func TestCropPage_NoBubbles(t *testing.T) {
	cfg := config.NewDefaultConfig()
	det := &scriptedDetector{detections: []analyzer.Detection{
		{ClassID: 5, Box: image.Rect(0, 0, 10, 10), Confidence: 0.9},
	}}
	log, hook := test.NewNullLogger()
	c := NewCropper(det, storage.LocalSink{}, cfg, 0, log)

	out := filepath.Join(t.TempDir(), "never")
	n, err := c.CropPage(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 100)), out, "")
	if err != nil {
		t.Fatalf("CropPage failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 bands, got %d", n)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("Output directory should not exist, stat err = %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Errorf("Expected a warning, got %v", entry)
	}
}

func TestCropPage_DetectorError(t *testing.T) {
	boom := errors.New("model unavailable")
	det := &scriptedDetector{err: boom}
	log, _ := test.NewNullLogger()
	c := NewCropper(det, storage.LocalSink{}, config.NewDefaultConfig(), 0, log)

	_, err := c.CropPage(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)), t.TempDir(), "")
	if !errors.Is(err, boom) {
		t.Errorf("Expected detector error to propagate, got %v", err)
	}
}

func TestCropPage_Idempotent(t *testing.T) {
	cfg := &config.Config{Confidence: 0.4, Padding: 2, OutputFormat: "jpg", JPEGQuality: 90}
	det := &scriptedDetector{detections: []analyzer.Detection{bubble(10, 40), bubble(60, 90)}}
	log, _ := test.NewNullLogger()
	c := NewCropper(det, storage.LocalSink{}, cfg, 0, log)
	img := image.NewRGBA(image.Rect(0, 0, 120, 100))

	first, second := t.TempDir(), t.TempDir()
	if _, err := c.CropPage(context.Background(), img, first, "p"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CropPage(context.Background(), img, second, "p"); err != nil {
		t.Fatal(err)
	}

	if a, b := listFiles(t, first), listFiles(t, second); !reflect.DeepEqual(a, b) {
		t.Errorf("Runs produced different names: %v vs %v", a, b)
	}
}
