package compat_test

import (
	"testing"

	"reelsync/internal/compat"
	"reelsync/internal/config"
	"reelsync/internal/media"
)

func TestClassify(t *testing.T) {
	policy := compat.DefaultPolicy()
	tests := []struct {
		name       string
		video      string
		audio      string
		extension  string
		compatible bool
		remuxOnly  bool
	}{
		{name: "baseline", video: "h264", audio: "aac", extension: "mp4", compatible: true},
		{name: "case insensitive", video: "H264", audio: "AAC", extension: ".MP4", compatible: true},
		{name: "hevc", video: "hevc", audio: "aac", extension: "mp4"},
		{name: "container only", video: "h264", audio: "aac", extension: "mkv", remuxOnly: true},
		{name: "audio and container", video: "h264", audio: "ac3", extension: "mkv"},
		{name: "missing audio", video: "h264", audio: "", extension: "mp4"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			verdict := policy.Classify(media.Technical{VideoCodec: tc.video, AudioCodec: tc.audio}, tc.extension)
			if verdict.Compatible != tc.compatible {
				t.Fatalf("compatible = %v, want %v (%s)", verdict.Compatible, tc.compatible, verdict)
			}
			if verdict.RemuxOnly() != tc.remuxOnly {
				t.Fatalf("remuxOnly = %v, want %v (%s)", verdict.RemuxOnly(), tc.remuxOnly, verdict)
			}
		})
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Compatibility.VideoCodec = "HEVC"
	cfg.Compatibility.Extension = ".mkv"
	policy := compat.PolicyFromConfig(&cfg)
	if policy.VideoCodec != "hevc" || policy.Extension != "mkv" || policy.AudioCodec != "aac" {
		t.Fatalf("unexpected policy %+v", policy)
	}
	verdict := policy.Classify(media.Technical{VideoCodec: "hevc", AudioCodec: "aac"}, "mkv")
	if !verdict.Compatible {
		t.Fatalf("expected configured policy to accept hevc/mkv, got %s", verdict)
	}
}

func TestPartition(t *testing.T) {
	policy := compat.DefaultPolicy()
	batch := []compat.Candidate{
		{File: media.File{Filename: "a.mp4"}, Technical: media.Technical{VideoCodec: "h264", AudioCodec: "aac"}},
		{File: media.File{Filename: "b.mkv"}, Technical: media.Technical{VideoCodec: "hevc", AudioCodec: "aac"}},
		{File: media.File{Filename: "c.mp4"}, Technical: media.Technical{VideoCodec: "h264", AudioCodec: "aac"}},
	}
	compatible, incompatible := policy.Partition(batch)
	if len(compatible) != 2 || len(incompatible) != 1 {
		t.Fatalf("unexpected partition %d/%d", len(compatible), len(incompatible))
	}
	if compatible[0].File.Filename != "a.mp4" || compatible[1].File.Filename != "c.mp4" {
		t.Fatalf("partition lost input order: %+v", compatible)
	}
	if incompatible[0].File.Filename != "b.mkv" {
		t.Fatalf("unexpected incompatible file %q", incompatible[0].File.Filename)
	}
}
