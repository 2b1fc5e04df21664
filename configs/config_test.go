package configs

import (
	"os"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	// t.Setenv registers the restore; unsetting afterwards leaves the
	// variable absent for the duration of this test only.
	for _, key := range []string{"LIBRARY_DATA_DIR", "LIBRARY_STORAGE", "LIBRARY_AUDIT_LOG"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := LoadConfig()
	if cfg.DataDir != "data" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, "data")
	}
	if cfg.Storage != "flat" {
		t.Errorf("Storage = %q, want %q", cfg.Storage, "flat")
	}
	if cfg.AuditLog != "audit.log" {
		t.Errorf("AuditLog = %q, want %q", cfg.AuditLog, "audit.log")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LIBRARY_DATA_DIR", "/tmp/lib-data")
	t.Setenv("LIBRARY_STORAGE", "sqlite")
	t.Setenv("LIBRARY_AUDIT_LOG", "/tmp/lib.audit")

	cfg := LoadConfig()
	if cfg.DataDir != "/tmp/lib-data" {
		t.Errorf("DataDir = %q, want override", cfg.DataDir)
	}
	if cfg.Storage != "sqlite" {
		t.Errorf("Storage = %q, want override", cfg.Storage)
	}
	if cfg.AuditLog != "/tmp/lib.audit" {
		t.Errorf("AuditLog = %q, want override", cfg.AuditLog)
	}
}
