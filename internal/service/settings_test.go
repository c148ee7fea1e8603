package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/testutil"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestSettingsSeedFromFile(t *testing.T) {
	ctx := context.Background()
	svc := NewSettingsService(repository.NewSettingsRepository(testutil.NewDB(t)))

	path := writeSettings(t, "company_name: Acme Tools\ncompany_address: 1 Main St\n")
	if err := svc.SeedFromFile(ctx, path); err != nil {
		t.Fatalf("SeedFromFile: %v", err)
	}

	display, err := svc.Display(ctx)
	if err != nil {
		t.Fatalf("Display: %v", err)
	}
	if display.CompanyName != "Acme Tools" || display.CompanyAddress != "1 Main St" {
		t.Errorf("display = %+v, want values from file", display)
	}
	if display.InvoiceFooter != defaultDisplaySettings.InvoiceFooter {
		t.Errorf("footer = %q, want default", display.InvoiceFooter)
	}

	// reseeding never overwrites stored values
	if err := svc.SeedFromFile(ctx, writeSettings(t, "company_name: Other\n")); err != nil {
		t.Fatalf("second SeedFromFile: %v", err)
	}
	display, _ = svc.Display(ctx)
	if display.CompanyName != "Acme Tools" {
		t.Errorf("company name = %q, seed must not overwrite", display.CompanyName)
	}

	if err := svc.UpdateDisplay(ctx, model.DisplaySettings{CompanyName: "Renamed"}); err != nil {
		t.Fatalf("UpdateDisplay: %v", err)
	}
	display, _ = svc.Display(ctx)
	if display.CompanyName != "Renamed" || display.CompanyAddress != "1 Main St" {
		t.Errorf("display = %+v, want partial update", display)
	}
}

func TestSettingsSeedRejectsBadYAML(t *testing.T) {
	svc := NewSettingsService(repository.NewSettingsRepository(testutil.NewDB(t)))

	if err := svc.SeedFromFile(context.Background(), writeSettings(t, "company_name: [unterminated\n")); err == nil {
		t.Fatal("malformed yaml should fail")
	}
}
