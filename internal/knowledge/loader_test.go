package knowledge

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_MissingDirectory(t *testing.T) {
	b := Load(filepath.Join(t.TempDir(), "nope"), testLogger())
	if b == nil {
		t.Fatal("Load should not return nil")
	}

	formatted := b.Format()
	if !strings.HasPrefix(formatted, promptHeader) {
		t.Error("formatted block should start with the header")
	}
	if strings.Contains(formatted, "### UPGRADE PROCEDURES") {
		t.Error("empty sections should not be rendered")
	}
}

func TestLoad_FormatsNonEmptySections(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dashboard.md"), []byte("# RAM steps"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "safety.md"), []byte("unplug first"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := Load(dir, testLogger())
	formatted := b.Format()

	if !strings.Contains(formatted, "### UPGRADE PROCEDURES\n\n# RAM steps") {
		t.Error("dashboard section should be labelled and included")
	}
	if !strings.Contains(formatted, "### SAFETY PROCEDURES & WARNINGS\n\nunplug first") {
		t.Error("safety section should be labelled and included")
	}
	if strings.Contains(formatted, "TROUBLESHOOTING GUIDE") {
		t.Error("missing export file should yield no troubleshooting section")
	}
	if !strings.Contains(formatted, sectionSeparator) {
		t.Error("sections should be joined with the separator")
	}
}

func TestLoad_SectionOrder(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "advanced.md"), []byte("late"), 0o644)
	os.WriteFile(filepath.Join(dir, "dashboard.md"), []byte("early"), 0o644)

	formatted := Load(dir, testLogger()).Format()
	early := strings.Index(formatted, "early")
	late := strings.Index(formatted, "late")
	if early < 0 || late < 0 {
		t.Fatal("both sections should be present")
	}
	if early > late {
		t.Error("dashboard should precede advanced")
	}
}

func TestLoad_InvalidUTF8Replaced(t *testing.T) {
	dir := t.TempDir()
	// cp1252-style byte that is invalid UTF-8
	if err := os.WriteFile(filepath.Join(dir, "tools.md"), []byte{'o', 'k', 0xE9, '!'}, 0o644); err != nil {
		t.Fatal(err)
	}

	b := Load(dir, testLogger())
	section := b.Section("tools")
	if section == "" {
		t.Fatal("section should be loaded despite invalid bytes")
	}
	if !strings.Contains(section, "ok") || !strings.Contains(section, "!") {
		t.Errorf("valid bytes should survive, got %q", section)
	}
	if !strings.Contains(section, "�") {
		t.Errorf("invalid byte should be replaced, got %q", section)
	}
}

func TestSanitizeUTF8_ValidPassthrough(t *testing.T) {
	in := "héllo"
	if got := sanitizeUTF8([]byte(in)); got != in {
		t.Errorf("valid UTF-8 should pass through unchanged, got %q", got)
	}
}
