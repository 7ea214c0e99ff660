package ffprobe

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"reelsync/internal/media"
	"reelsync/internal/services"
)

// Normalize converts raw ffprobe output into the catalog's technical record.
// A result without a video stream cannot be catalogued and is a probe error.
func Normalize(result Result) (media.Technical, error) {
	video, ok := result.VideoStream()
	if !ok {
		return media.Technical{}, services.Wrap(services.ErrProbe, "probe", "normalize", "no video stream", nil)
	}
	duration := result.DurationSeconds()
	if math.IsNaN(duration) || duration < 0 {
		return media.Technical{}, services.Wrap(services.ErrProbe, "probe", "normalize", "invalid duration "+result.Format.Duration, nil)
	}

	tech := media.Technical{
		VideoCodec:      strings.ToLower(video.CodecName),
		Width:           video.Width,
		Height:          video.Height,
		DurationSeconds: duration,
		Duration:        FormatDuration(duration),
		FrameRate:       FormatFrameRate(video.AvgFrameRate),
	}
	if audio, ok := result.AudioStream(); ok {
		tech.AudioCodec = strings.ToLower(audio.CodecName)
	}
	if video.Width > 0 && video.Height > 0 {
		tech.Resolution = fmt.Sprintf("%dx%d", video.Width, video.Height)
		tech.AspectRatio = math.Round(float64(video.Width)/float64(video.Height)*100) / 100
	}
	if bps := result.BitRate(); bps > 0 {
		tech.BitrateKbps = float64(bps) / 1000
		tech.Bitrate = fmt.Sprintf("%.2f kbps", tech.BitrateKbps)
	}
	return tech, nil
}

// FormatDuration renders seconds as HH:MM:SS; hours are not wrapped at 24.
func FormatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "00:00:00"
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatFrameRate turns ffprobe's "num/den" rate into a three-decimal string.
func FormatFrameRate(value string) string {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		if rate, err := strconv.ParseFloat(num, 64); err == nil && rate > 0 {
			return fmt.Sprintf("%.3f", rate)
		}
		return ""
	}
	n, errN := strconv.ParseFloat(num, 64)
	d, errD := strconv.ParseFloat(den, 64)
	if errN != nil || errD != nil || d == 0 || n <= 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", n/d)
}
