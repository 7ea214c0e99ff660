package identity_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelsync/internal/identity"
	"reelsync/internal/media"
	"reelsync/internal/services"
)

func writeBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFingerprintStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mkv")
	writeBytes(t, path, []byte("some media bytes"))

	first, err := identity.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	second, err := identity.Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if first != second {
		t.Fatalf("fingerprint changed without content change: %s vs %s", first, second)
	}
	if len(first) != 32 {
		t.Fatalf("expected md5 hex digest, got %q", first)
	}
}

func TestFingerprintOnlyReadsPrefix(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.mkv")
	writeBytes(t, a, []byte("HEADERHEADER-tail-one"))
	writeBytes(t, b, []byte("HEADERHEADER-tail-two"))

	hashA, err := identity.FingerprintPrefix(a, 12)
	if err != nil {
		t.Fatalf("FingerprintPrefix: %v", err)
	}
	hashB, err := identity.FingerprintPrefix(b, 12)
	if err != nil {
		t.Fatalf("FingerprintPrefix: %v", err)
	}
	if hashA != hashB {
		t.Fatal("files sharing the hashed prefix must collide")
	}

	writeBytes(t, b, []byte("XEADERHEADER-tail-two"))
	changed, err := identity.FingerprintPrefix(b, 12)
	if err != nil {
		t.Fatalf("FingerprintPrefix: %v", err)
	}
	if changed == hashB {
		t.Fatal("fingerprint must change when the leading bytes change")
	}
}

func TestFingerprintEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp4")
	writeBytes(t, path, nil)
	got, err := identity.NewHasher(0).Fingerprint(path)
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	if got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Fatalf("unexpected empty digest %q", got)
	}
}

func TestFingerprintMissingFile(t *testing.T) {
	_, err := identity.Fingerprint(filepath.Join(t.TempDir(), "missing.mp4"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found marker, got %v", err)
	}
}

func TestTitleKey(t *testing.T) {
	got := identity.TitleKey(media.CategorySeries, "The Office")
	if got != "5d86f00fb799e705c1e8b9c5d7aa1437" {
		t.Fatalf("unexpected title key %q", got)
	}
	if identity.TitleKey(media.CategoryMovie, "The Office") == got {
		t.Fatal("title keys must differ across categories")
	}
}
