package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/bubblecrop/internal/imageio"
)

const appDir = "BubbleCrop"

// FallbackOutputDir is used when the Documents directory is unusable.
const FallbackOutputDir = "output"

// DefaultOutputDir returns <Documents>/BubbleCrop, creating it if needed.
func DefaultOutputDir(log logrus.FieldLogger) string {
	return resolveOutputDir(filepath.Join(xdg.UserDirs.Documents, appDir), log)
}

func resolveOutputDir(candidate string, log logrus.FieldLogger) string {
	if err := os.MkdirAll(candidate, 0755); err != nil {
		log.WithFields(logrus.Fields{"dir": candidate, "error": err}).
			Warnf("[!] Cannot use default output directory, falling back to '%s'", FallbackOutputDir)
		return FallbackOutputDir
	}
	return candidate
}

// DefaultLogFile returns the rotating log path under the XDG state directory.
func DefaultLogFile() string {
	return filepath.Join(xdg.StateHome, "bubblecrop", "bubblecrop.log")
}

// IsInputName reports whether name is something the traverser can open as a
// file: an archive, a PDF or a page image.
func IsInputName(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip", ".cbz", ".pdf":
		return true
	}
	return imageio.IsImageName(name)
}

// FindLatestInput returns the most recently modified input file in dir.
func FindLatestInput(dir string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") || !IsInputName(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no archives, PDFs or images found in %s", dir)
	}

	return latestFile, nil
}
