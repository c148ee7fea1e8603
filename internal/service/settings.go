package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/model"
	"github.com/Houman6460/OCUS-jub-hunter-sub002/internal/repository"

	"gopkg.in/yaml.v3"
)

var defaultDisplaySettings = model.DisplaySettings{
	CompanyName:        "Ocus Job Hunter",
	CompanyEmail:       "support@ocus-jobhunter.com",
	InvoiceFooter:      "Thank you for your purchase.",
	ProductDisplayName: "Ocus Job Hunter Premium",
}

type SettingsService interface {
	SeedFromFile(ctx context.Context, path string) error
	Display(ctx context.Context) (model.DisplaySettings, error)
	UpdateDisplay(ctx context.Context, settings model.DisplaySettings) error
}

type settingsServiceImpl struct {
	settingsRepo repository.SettingsRepository
}

func NewSettingsService(settingsRepo repository.SettingsRepository) SettingsService {
	return &settingsServiceImpl{
		settingsRepo: settingsRepo,
	}
}

// SeedFromFile stores display settings from a YAML file for keys that are
// not set yet. A missing file seeds the built-in defaults.
func (s *settingsServiceImpl) SeedFromFile(ctx context.Context, path string) error {
	seed := defaultDisplaySettings

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fromFile model.DisplaySettings
		if err := yaml.Unmarshal(raw, &fromFile); err != nil {
			return fmt.Errorf("parse settings file: %w", err)
		}
		seed = mergeDisplay(seed, fromFile)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("read settings file: %w", err)
	}

	values := make(map[string]string)
	for key, value := range seed.ToMap() {
		if value != "" {
			values[key] = value
		}
	}

	if err := s.settingsRepo.SeedDefaults(ctx, values); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	return nil
}

func (s *settingsServiceImpl) Display(ctx context.Context) (model.DisplaySettings, error) {
	values, err := s.settingsRepo.GetAll(ctx)
	if err != nil {
		return model.DisplaySettings{}, fmt.Errorf("load settings: %w", err)
	}

	return mergeDisplay(defaultDisplaySettings, model.DisplaySettingsFromMap(values)), nil
}

func (s *settingsServiceImpl) UpdateDisplay(ctx context.Context, settings model.DisplaySettings) error {
	for key, value := range settings.ToMap() {
		if value == "" {
			continue
		}
		if err := s.settingsRepo.Set(ctx, key, value); err != nil {
			return fmt.Errorf("store setting %s: %w", key, err)
		}
	}
	return nil
}

// mergeDisplay overlays the non-empty fields of override onto base.
func mergeDisplay(base, override model.DisplaySettings) model.DisplaySettings {
	merged := base.ToMap()
	for key, value := range override.ToMap() {
		if value != "" {
			merged[key] = value
		}
	}
	return model.DisplaySettingsFromMap(merged)
}
