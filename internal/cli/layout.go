package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/josetascon/cinemri-simulation/internal/models"
	"github.com/josetascon/cinemri-simulation/pkg/nifti"
)

// volumeExts are tried in order when a volume is referenced without extension
var volumeExts = []string{".nii.gz", ".nii"}

// layout locates the inputs of a run.
//
//	<input>/masks/<label>.nii.gz            segmentation masks
//	<model>/4dct-mr/4dct00_to_mr_Warped.*   reference volume
//	<model>/seq/                            phase-to-phase fields
type layout struct {
	input string
	model string
}

func (l layout) fieldDir() string {
	return filepath.Join(l.model, "seq")
}

func (l layout) referencePath() (string, error) {
	return findVolume(filepath.Join(l.model, "4dct-mr", "4dct00_to_mr_Warped"))
}

func (l layout) maskPath(label string) (string, error) {
	return findVolume(filepath.Join(l.input, "masks", label))
}

// findVolume returns the first existing stem+ext
func findVolume(stem string) (string, error) {
	for _, ext := range volumeExts {
		path := stem + ext
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("volume not found: %s{%s,%s}", stem, volumeExts[0], volumeExts[1])
}

// loadMasks reads the masks named by labels in order
func (l layout) loadMasks(labels []string) ([]*models.Volume, error) {
	masks := make([]*models.Volume, 0, len(labels))
	for _, label := range labels {
		path, err := l.maskPath(label)
		if err != nil {
			return nil, fmt.Errorf("mask %s: %w", label, err)
		}
		vol, err := nifti.ReadVolume(path)
		if err != nil {
			return nil, fmt.Errorf("mask %s: %w", label, err)
		}
		masks = append(masks, vol)
	}
	return masks, nil
}

// NewLogger returns the text logger used by every command; verbose enables
// per-frame debug records.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
