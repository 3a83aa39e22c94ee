package config

import (
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Policy.MinAdopterAge != 18 {
		t.Errorf("min_adopter_age = %d", cfg.Policy.MinAdopterAge)
	}
	if cfg.Reservation.Hours != 48 {
		t.Errorf("reservation.hours = %d", cfg.Reservation.Hours)
	}
	if cfg.Policy.LargeHousing != "house" || cfg.Policy.LargeMinAreaM2 != 60 {
		t.Errorf("large policy = %s/%d", cfg.Policy.LargeHousing, cfg.Policy.LargeMinAreaM2)
	}
}

func TestWeightsMustSumToOne(t *testing.T) {
	cfg := Default()
	cfg.Scoring.Weights.Temperament = 0.5
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "sum to 1.0") {
		t.Fatalf("expected weight sum error, got %v", err)
	}
}

func TestFromYAMLRejectsBadHousing(t *testing.T) {
	data := strings.Replace(GenerateDefault(), "large_housing: house", "large_housing: castle", 1)
	if _, err := FromYAML([]byte(data)); err == nil {
		t.Fatalf("expected housing validation error")
	}
}

func TestFromYAMLRoundTrip(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("parse default template: %v", err)
	}
	if cfg.Scoring.Weights.HousingSize != 0.30 {
		t.Errorf("housing_size weight = %v", cfg.Scoring.Weights.HousingSize)
	}
}
