package compat

import (
	"strings"

	"reelsync/internal/config"
	"reelsync/internal/media"
)

// Policy is the directly-playable codec and container combination.
type Policy struct {
	VideoCodec string
	AudioCodec string
	Extension  string
}

// PolicyFromConfig builds the policy from the compatibility section.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return NewPolicy(cfg.Compatibility.VideoCodec, cfg.Compatibility.AudioCodec, cfg.Compatibility.Extension)
}

// DefaultPolicy is the compatibility section of the default configuration.
func DefaultPolicy() Policy {
	cfg := config.Default()
	return PolicyFromConfig(&cfg)
}

// NewPolicy lowercases the values and strips a leading dot from the extension.
func NewPolicy(video, audio, extension string) Policy {
	return Policy{
		VideoCodec: normalize(video),
		AudioCodec: normalize(audio),
		Extension:  strings.TrimPrefix(normalize(extension), "."),
	}
}

// Reason names the first policy value a file violates.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonVideo     Reason = "video_codec"
	ReasonAudio     Reason = "audio_codec"
	ReasonContainer Reason = "container"
)

// Verdict is the classifier's decision for one file.
type Verdict struct {
	Compatible bool
	Reasons    []Reason
}

// RemuxOnly reports whether the container is the only mismatch, in which
// case the streams can be copied without re-encoding.
func (v Verdict) RemuxOnly() bool {
	return !v.Compatible && len(v.Reasons) == 1 && v.Reasons[0] == ReasonContainer
}

func (v Verdict) String() string {
	if v.Compatible {
		return "compatible"
	}
	parts := make([]string, 0, len(v.Reasons))
	for _, reason := range v.Reasons {
		parts = append(parts, string(reason))
	}
	return "incompatible: " + strings.Join(parts, ",")
}

// Classify decides whether a file with the given technical facts and
// extension is directly playable.
func (p Policy) Classify(tech media.Technical, extension string) Verdict {
	var reasons []Reason
	if normalize(tech.VideoCodec) != p.VideoCodec {
		reasons = append(reasons, ReasonVideo)
	}
	if normalize(tech.AudioCodec) != p.AudioCodec {
		reasons = append(reasons, ReasonAudio)
	}
	if strings.TrimPrefix(normalize(extension), ".") != p.Extension {
		reasons = append(reasons, ReasonContainer)
	}
	return Verdict{Compatible: len(reasons) == 0, Reasons: reasons}
}

// Candidate pairs a probed file with its technical facts.
type Candidate struct {
	File      media.File
	Technical media.Technical
}

// Partition splits a batch into compatible and incompatible candidates,
// preserving input order within each side.
func (p Policy) Partition(batch []Candidate) (compatible, incompatible []Candidate) {
	for _, candidate := range batch {
		if p.Classify(candidate.Technical, candidate.File.Extension()).Compatible {
			compatible = append(compatible, candidate)
		} else {
			incompatible = append(incompatible, candidate)
		}
	}
	return compatible, incompatible
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
