// Package frames persists synthesized 2D frames, one directory per output
// channel, and reports how far a previous run got.
package frames

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/josetascon/cinemri-simulation/internal/models"
	"github.com/josetascon/cinemri-simulation/pkg/nifti"
)

// Format is the on-disk encoding of a frame
type Format int

const (
	// NIfTI writes float32 2D images, keeping the unscaled intensities.
	NIfTI Format = iota
	// TIFF writes 16-bit grayscale previews windowed to each frame's range.
	TIFF
)

// ParseFormat converts a configuration value into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "nii", "nifti":
		return NIfTI, nil
	case "tif", "tiff":
		return TIFF, nil
	}
	return NIfTI, fmt.Errorf("unknown frame format %q (must be nii or tiff)", s)
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	if f == TIFF {
		return ".tiff"
	}
	return ".nii"
}

// Channel is one output stream of frames: the primary image or one
// auxiliary (segmentation) volume.
type Channel struct {
	Dir    string
	Prefix string
}

// PrimaryChannel is the warped reference image stream under root.
func PrimaryChannel(root string) Channel {
	return Channel{Dir: filepath.Join(root, "image"), Prefix: "image"}
}

// AuxiliaryChannels names count auxiliary streams under root. Named channels
// use the name for both directory and file prefix; without names they are
// struct00, struct01, ... with the "structure" prefix.
func AuxiliaryChannels(root string, names []string, count int) []Channel {
	channels := make([]Channel, count)
	for i := range channels {
		if len(names) == count {
			channels[i] = Channel{Dir: filepath.Join(root, names[i]), Prefix: names[i]}
			continue
		}
		channels[i] = Channel{Dir: filepath.Join(root, fmt.Sprintf("struct%02d", i)), Prefix: "structure"}
	}
	return channels
}

// FileName returns the frame file name for index without the directory
func (c Channel) FileName(index int, format Format) string {
	return fmt.Sprintf("%s_%04d%s", c.Prefix, index, format.Ext())
}

// Path returns the full path of frame index in this channel.
func (c Channel) Path(index int, format Format) string {
	return filepath.Join(c.Dir, c.FileName(index, format))
}

// Progress summarizes the frames already present in a channel.
type Progress struct {
	// Count is the number of frame files found.
	Count int
	// Next is the lowest frame index without a file.
	Next int
}

// Scan lists the frames present in the channel directory. A missing
// directory means no progress.
func (c Channel) Scan() (Progress, error) {
	entries, err := os.ReadDir(c.Dir)
	if os.IsNotExist(err) {
		return Progress{}, nil
	}
	if err != nil {
		return Progress{}, fmt.Errorf("failed to list %s: %w", c.Dir, err)
	}

	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(c.Prefix) + `_(\d+)\.`)
	var indices []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	p := Progress{Count: len(indices)}
	for _, idx := range indices {
		if idx > p.Next {
			break
		}
		if idx == p.Next {
			p.Next++
		}
	}
	return p, nil
}

// Writer stores frames for a fixed set of channels.
type Writer struct {
	format   Format
	channels []Channel
}

// NewWriter creates a writer for the given channels; channels[0] is primary.
func NewWriter(format Format, channels []Channel) *Writer {
	return &Writer{format: format, channels: channels}
}

// Channels returns the channels in write order
func (w *Writer) Channels() []Channel {
	return w.channels
}

// Format returns the frame encoding
func (w *Writer) Format() Format {
	return w.format
}

// Prepare creates every channel directory.
func (w *Writer) Prepare() error {
	for _, c := range w.channels {
		if err := os.MkdirAll(c.Dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return nil
}

// Write stores img as frame index of channel ch.
func (w *Writer) Write(ch int, index int, img *models.Image2D) error {
	if ch < 0 || ch >= len(w.channels) {
		return fmt.Errorf("channel %d out of range", ch)
	}
	path := w.channels[ch].Path(index, w.format)

	switch w.format {
	case TIFF:
		return writeTIFF(path, img)
	default:
		return nifti.WriteImage2D(path, img)
	}
}

func writeTIFF(path string, img *models.Image2D) error {
	gray := ToGray16(img)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := tiff.Encode(file, gray, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return file.Close()
}

// ToGray16 windows the frame to its own min/max range.
func ToGray16(img *models.Image2D) *image.Gray16 {
	gray := image.NewGray16(image.Rect(0, 0, img.Width, img.Height))
	if len(img.Data) == 0 {
		return gray
	}

	lo, hi := floats.Min(img.Data), floats.Max(img.Data)
	scale := 0.0
	if hi > lo {
		scale = 65535.0 / (hi - lo)
	}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := (img.Data[y*img.Width+x] - lo) * scale
			gray.SetGray16(x, y, color.Gray16{Y: uint16(v + 0.5)})
		}
	}
	return gray
}

// Stats returns the mean and standard deviation of the frame intensities
func Stats(img *models.Image2D) (mean, std float64) {
	if len(img.Data) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(img.Data, nil)
}
