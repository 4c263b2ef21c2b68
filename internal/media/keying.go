// Package media provides the green-screen keying step: the inference
// provider returns the subject composited over a solid green background,
// and ffmpeg turns that into a transparent-background webm.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Static errors for media operations.
var (
	// ErrSourceRequired is returned when the source path is empty.
	ErrSourceRequired = errors.New("media: source path is required")
	// ErrDestRequired is returned when the destination path is empty.
	ErrDestRequired = errors.New("media: destination path is required")
	// ErrEmptyOutput is returned when ffmpeg produced an empty file.
	ErrEmptyOutput = errors.New("media: keying produced an empty output file")
)

// keyFilter removes the provider's green screen and suppresses green spill.
// The color and tolerances match the provider's matte output.
const keyFilter = "colorkey=0x6ceb97:0.17:0.15,despill=green:mix=0.5"

// Keyer converts a green-screen video into an alpha-channel one.
type Keyer interface {
	// KeyGreenScreen reads the green-screen video at src and writes a
	// transparent-background webm to dst.
	KeyGreenScreen(ctx context.Context, src, dst string) error
}

// FFmpegKeyer implements Keyer using the ffmpeg CLI.
type FFmpegKeyer struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
}

// NewFFmpegKeyer creates a new FFmpegKeyer.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegKeyer(ffmpegPath string) *FFmpegKeyer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegKeyer{ffmpegPath: ffmpegPath}
}

// Compile-time check that FFmpegKeyer implements Keyer.
var _ Keyer = (*FFmpegKeyer)(nil)

// KeyGreenScreen keys out the green background and encodes VP9 with an
// alpha channel (yuva420p). Verifies the output file is non-empty because
// ffmpeg can exit zero after writing nothing when the input is truncated.
func (k *FFmpegKeyer) KeyGreenScreen(ctx context.Context, src, dst string) error {
	if src == "" {
		return ErrSourceRequired
	}
	if dst == "" {
		return ErrDestRequired
	}

	args := []string{
		"-y",      // Overwrite output file without asking
		"-i", src, // Input file
		"-vf", keyFilter, // Keying filter chain
		"-c:v", "libvpx-vp9", // VP9 supports alpha
		"-pix_fmt", "yuva420p", // Pixel format with alpha plane
		"-b:v", "2M", // Video bitrate
		"-auto-alt-ref", "0", // Alt-ref frames break alpha in vp9
		dst, // Output file
	}

	if err := k.runFFmpeg(ctx, args); err != nil {
		return err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return fmt.Errorf("media: stat output: %w", err)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}

	return nil
}

// runFFmpeg executes ffmpeg with the given arguments, capturing stderr for
// error reporting.
func (k *FFmpegKeyer) runFFmpeg(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, k.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("media: ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("media: ffmpeg failed: %w", err)
	}

	return nil
}
