package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"reelsync/internal/config"
	"reelsync/internal/services"
)

var commandContext = exec.CommandContext

// Mode selects between a full re-encode and a stream copy into the target
// container.
type Mode string

const (
	ModeEncode Mode = "encode"
	ModeRemux  Mode = "remux"
)

// Progress is one parsed ffmpeg status line.
type Progress struct {
	// Percent is negative when the input duration is unknown.
	Percent float64
	Frame   int64
	Time    time.Duration
	Speed   string
}

// Settings are the encoder parameters for a re-encode.
type Settings struct {
	VideoEncoder  string
	Preset        string
	CRF           int
	PixelFormat   string
	AudioEncoder  string
	AudioChannels int
	Container     string
}

// SettingsFromConfig reads the transcode and compatibility sections.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		VideoEncoder:  cfg.Transcode.VideoEncoder,
		Preset:        cfg.Transcode.Preset,
		CRF:           cfg.Transcode.CRF,
		PixelFormat:   cfg.Transcode.PixelFormat,
		AudioEncoder:  cfg.Transcode.AudioEncoder,
		AudioChannels: cfg.Transcode.AudioChannels,
		Container:     cfg.Compatibility.Extension,
	}
}

// Runner encodes one file.
type Runner interface {
	Encode(ctx context.Context, input, output string, mode Mode, duration float64, progress func(Progress)) error
}

// FFmpeg runs the ffmpeg binary.
type FFmpeg struct {
	binary   string
	settings Settings
}

// NewFFmpeg returns an FFmpeg runner for binary with the given settings.
func NewFFmpeg(binary string, settings Settings) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if settings.Container == "" {
		settings.Container = "mp4"
	}
	return &FFmpeg{binary: binary, settings: settings}
}

// Args builds the ffmpeg argument list. The output is always overwritten.
// A remux copies the first video stream and every audio stream; subtitle,
// data and attachment streams are dropped since mp4 cannot carry most of
// them as is.
func (f *FFmpeg) Args(input, output string, mode Mode) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", input}
	if mode == ModeRemux {
		args = append(args, "-map", "0:v:0", "-map", "0:a?", "-c", "copy", "-sn", "-dn")
	} else {
		s := f.settings
		args = append(args, "-c:v", s.VideoEncoder)
		if s.Preset != "" {
			args = append(args, "-preset", s.Preset)
		}
		if s.CRF > 0 {
			args = append(args, "-crf", strconv.Itoa(s.CRF))
		}
		if s.PixelFormat != "" {
			args = append(args, "-pix_fmt", s.PixelFormat)
		}
		args = append(args, "-c:a", s.AudioEncoder)
		if s.AudioChannels > 0 {
			args = append(args, "-ac", strconv.Itoa(s.AudioChannels))
		}
	}
	if f.settings.Container == "mp4" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", f.settings.Container, output)
}

// Encode runs ffmpeg and streams its status lines to progress. A non-zero
// exit, or an exit that leaves no output, fails with ErrEncode.
func (f *FFmpeg) Encode(ctx context.Context, input, output string, mode Mode, duration float64, progress func(Progress)) error {
	if input == "" || output == "" {
		return services.Wrap(services.ErrValidation, "transcode", "encode", "input and output required", nil)
	}

	cmd := commandContext(ctx, f.binary, f.Args(input, output, mode)...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return f.startError(err)
	}

	tail := newTail(20)
	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if update, ok := ParseProgress(line, duration); ok {
			if progress != nil {
				progress(update)
			}
			continue
		}
		tail.add(line)
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return services.Wrap(services.ErrTimeout, "transcode", "encode", input, ctxErr)
			}
			return ctxErr
		}
		return services.Wrap(services.ErrEncode, "transcode", "encode", tail.String(), err)
	}
	if scanErr != nil {
		return services.Wrap(services.ErrEncode, "transcode", "encode", "read ffmpeg output", scanErr)
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrEncode, "transcode", "encode", "ffmpeg produced no output", err)
	}
	return nil
}

func (f *FFmpeg) startError(err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrToolMissing, "transcode", "start", f.binary, err)
	}
	return services.Wrap(services.ErrExternalTool, "transcode", "start", f.binary, err)
}

// ParseProgress extracts frame, time and speed from an ffmpeg status line
// such as "frame=  240 fps= 48 q=28.0 size=1024kB time=00:00:10.01
// bitrate=838.1kbits/s speed=2.01x".
func ParseProgress(line string, duration float64) (Progress, bool) {
	if !strings.Contains(line, "time=") || (!strings.Contains(line, "frame=") && !strings.Contains(line, "size=")) {
		return Progress{}, false
	}
	fields := statusFields(line)
	elapsed, ok := parseClock(fields["time"])
	if !ok {
		return Progress{}, false
	}
	update := Progress{Percent: -1, Time: elapsed, Speed: fields["speed"]}
	if frame, err := strconv.ParseInt(fields["frame"], 10, 64); err == nil {
		update.Frame = frame
	}
	if duration > 0 {
		update.Percent = min(100, elapsed.Seconds()/duration*100)
	}
	return update, true
}

var statusFieldPattern = regexp.MustCompile(`(\w+)=\s*(\S+)`)

func statusFields(line string) map[string]string {
	out := make(map[string]string)
	for _, match := range statusFieldPattern.FindAllStringSubmatch(line, -1) {
		out[match[1]] = match[2]
	}
	return out
}

func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, errH := strconv.Atoi(parts[0])
	minutes, errM := strconv.Atoi(parts[1])
	seconds, errS := strconv.ParseFloat(parts[2], 64)
	if errH != nil || errM != nil || errS != nil {
		return 0, false
	}
	total := float64(hours*3600+minutes*60) + seconds
	return time.Duration(total * float64(time.Second)), true
}

// scanStatusLines splits on both \n and \r, since ffmpeg redraws its status
// line with carriage returns.
func scanStatusLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type stderrTail struct {
	lines []string
	limit int
}

func newTail(limit int) *stderrTail {
	return &stderrTail{limit: limit}
}

func (t *stderrTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *stderrTail) String() string {
	if len(t.lines) == 0 {
		return "ffmpeg exited with an error"
	}
	return t.lines[len(t.lines)-1]
}
