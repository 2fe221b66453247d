package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/frma/frma/internal/config"
	"github.com/frma/frma/internal/domain/catalog"
	"github.com/frma/frma/internal/platform/db"
	"github.com/frma/frma/internal/platform/inference"
)

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := newLogger("production", tt.level).GetLevel(); got != tt.want {
			t.Errorf("newLogger(%q) level = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestBuildBackend_HTTP(t *testing.T) {
	cfg := &config.Config{InferenceBackend: "http", InferenceURL: "http://localhost:8000", InferenceTimeout: time.Second}
	b, probe, err := buildBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.(*inference.HTTPBackend); !ok {
		t.Errorf("expected *inference.HTTPBackend, got %T", b)
	}
	if probe == nil {
		t.Error("expected a health probe for the HTTP backend")
	}
}

func TestBackendName(t *testing.T) {
	b := inference.NewHTTPBackend("http://model:8000")
	if got := backendName(b); got != "http:http://model:8000" {
		t.Errorf("unexpected name %q", got)
	}
	cached := inference.NewCachedBackend(b, nil, time.Minute, zerolog.Nop())
	if got := backendName(cached); got != "*inference.CachedBackend" {
		t.Errorf("expected type name fallback, got %q", got)
	}
}

func TestBuildBackend_Unknown(t *testing.T) {
	cfg := &config.Config{InferenceBackend: "carrier-pigeon"}
	if _, _, err := buildBackend(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestWorkflowConfig(t *testing.T) {
	cfg := &config.Config{
		InferenceMaxTokens:   512,
		InferenceTemperature: 0,
		InferenceTopP:        0.9,
		InferenceTimeout:     45 * time.Second,
	}
	wc := workflowConfig(cfg)
	if wc.MaxNewTokens != 512 || wc.Temperature != 0 || wc.TopP != 0.9 || wc.Timeout != 45*time.Second {
		t.Errorf("unexpected workflow config: %+v", wc)
	}
}

func TestRateLimitConfig_FallsBackToDefaults(t *testing.T) {
	rl := rateLimitConfig(&config.Config{})
	if rl.RequestsPerSecond != 20 || rl.BurstSize != 40 {
		t.Errorf("expected defaults, got %+v", rl)
	}
	rl = rateLimitConfig(&config.Config{RateLimitRPS: 5, RateLimitBurst: 7})
	if rl.RequestsPerSecond != 5 || rl.BurstSize != 7 {
		t.Errorf("expected overrides, got %+v", rl)
	}
	if rl.MaxClients == 0 {
		t.Error("expected MaxClients to keep its default")
	}
}

func TestMigrationSource_Embedded(t *testing.T) {
	m := db.NewMigrator(nil, migrationSource(""))
	migs, err := m.LoadMigrations()
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	if len(migs) < 2 {
		t.Fatalf("expected at least 2 embedded migrations, got %d", len(migs))
	}
	if migs[0].Version != 1 || !strings.Contains(migs[0].SQL, "assessment_record") {
		t.Errorf("first migration = %d %s", migs[0].Version, migs[0].Name)
	}
}

func TestMigrationSource_Dir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "007_extra.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	migs, err := db.NewMigrator(nil, migrationSource(dir)).LoadMigrations()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(migs) != 1 || migs[0].Version != 7 {
		t.Errorf("unexpected migrations: %+v", migs)
	}
}

func TestLoadCatalog_Default(t *testing.T) {
	svc, err := loadCatalog("")
	if err != nil {
		t.Fatalf("load default catalog: %v", err)
	}
	if err := svc.Validate(); err != nil {
		t.Errorf("default catalog invalid: %v", err)
	}
	if len(svc.List()) == 0 {
		t.Error("expected emergency types")
	}
}

func TestLoadCatalog_MissingFile(t *testing.T) {
	if _, err := loadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	printCatalog(&buf, []catalog.Summary{
		{ID: "choking", Title: "Choking", HighPriority: true, QuestionCount: 6},
		{ID: "burns", Title: "Burns", QuestionCount: 5},
	})
	out := buf.String()
	if !strings.Contains(out, "choking") || !strings.Contains(out, "high") || !strings.Contains(out, "normal") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPrintStatuses(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	printStatuses(&buf, []db.MigrationStatus{
		{Version: 1, Name: "001_assessment.sql", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "002_user_profile.sql"},
	})
	out := buf.String()
	if !strings.Contains(out, "2026-01-02 03:04:05") {
		t.Errorf("expected applied timestamp, got:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Errorf("expected pending row, got:\n%s", out)
	}
}

func TestCatalogValidateCommand(t *testing.T) {
	cmd := catalogCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"validate"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Catalog OK") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
