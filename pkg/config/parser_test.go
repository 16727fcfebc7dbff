package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConf(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "iolog.conf")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing conf: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, warnings := Load(filepath.Join(t.TempDir(), "missing.conf"))
	if cfg.Exec != defaultExec || cfg.LogFile != defaultLogFile {
		t.Fatalf("got %+v, want defaults", cfg)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestLoadOverridesKeysCaseInsensitive(t *testing.T) {
	path := writeConf(t, "# comment\n\nExec = /usr/bin/zsh\nLOGFILE=/var/log/iolog.txt\n")
	cfg, warnings := Load(path)
	if cfg.Exec != "/usr/bin/zsh" {
		t.Fatalf("Exec = %q", cfg.Exec)
	}
	if cfg.LogFile != "/var/log/iolog.txt" {
		t.Fatalf("LogFile = %q", cfg.LogFile)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
}

func TestLoadReportsUnknownKeyAndKeepsGoing(t *testing.T) {
	path := writeConf(t, "bogus = 1\nexec = /bin/sh\n")
	cfg, warnings := Load(path)
	if cfg.Exec != "/bin/sh" {
		t.Fatalf("Exec = %q, expected later valid key still applied", cfg.Exec)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}

func TestLoadReportsMalformedLine(t *testing.T) {
	path := writeConf(t, "not a setting\n")
	_, warnings := Load(path)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
}
