package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Config models homeward.yml.
type Config struct {
	Policy struct {
		MinAdopterAge  int    `yaml:"min_adopter_age" json:"min_adopter_age"`
		LargeHousing   string `yaml:"large_housing" json:"large_housing"`
		LargeMinAreaM2 int    `yaml:"large_min_area_m2" json:"large_min_area_m2"`
	} `yaml:"policy" json:"policy"`
	Reservation struct {
		Hours int `yaml:"hours" json:"hours"`
	} `yaml:"reservation" json:"reservation"`
	Scoring struct {
		Weights Weights `yaml:"weights" json:"weights"`
	} `yaml:"scoring" json:"scoring"`
	Fees struct {
		Base             float64 `yaml:"base" json:"base"`
		SeniorDiscount   float64 `yaml:"senior_discount" json:"senior_discount"`
		SeniorFromMonths int     `yaml:"senior_from_months" json:"senior_from_months"`
		PuppySurcharge   float64 `yaml:"puppy_surcharge" json:"puppy_surcharge"`
		PuppyUpToMonths  int     `yaml:"puppy_up_to_months" json:"puppy_up_to_months"`
		SpecialSurcharge float64 `yaml:"special_surcharge" json:"special_surcharge"`
	} `yaml:"fees" json:"fees"`
}

// Weights are the compatibility score weights. HousingSize,
// Experience and Children are always applied; OtherPets and
// Temperament participate only when set above zero. The sum must be
// 1.0 so a maximally favorable adopter scores 100.
type Weights struct {
	HousingSize float64 `yaml:"housing_size" json:"housing_size"`
	Experience  float64 `yaml:"experience" json:"experience"`
	Children    float64 `yaml:"children" json:"children"`
	OtherPets   float64 `yaml:"other_pets" json:"other_pets"`
	Temperament float64 `yaml:"temperament" json:"temperament"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Policy.MinAdopterAge <= 0 {
		return fmt.Errorf("config.policy.min_adopter_age must be positive")
	}
	if c.Policy.LargeHousing != "house" && c.Policy.LargeHousing != "apartment" {
		return fmt.Errorf("config.policy.large_housing must be house or apartment")
	}
	if c.Policy.LargeMinAreaM2 <= 0 {
		return fmt.Errorf("config.policy.large_min_area_m2 must be positive")
	}
	if c.Reservation.Hours <= 0 {
		return fmt.Errorf("config.reservation.hours must be positive")
	}
	w := c.Scoring.Weights
	for name, v := range map[string]float64{
		"housing_size": w.HousingSize,
		"experience":   w.Experience,
		"children":     w.Children,
		"other_pets":   w.OtherPets,
		"temperament":  w.Temperament,
	} {
		if v < 0 {
			return fmt.Errorf("config.scoring.weights.%s cannot be negative", name)
		}
	}
	if w.HousingSize == 0 || w.Experience == 0 || w.Children == 0 {
		return fmt.Errorf("config.scoring.weights housing_size, experience and children are required")
	}
	sum := w.HousingSize + w.Experience + w.Children + w.OtherPets + w.Temperament
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("config.scoring.weights must sum to 1.0, got %.3f", sum)
	}
	if c.Fees.Base < 0 || c.Fees.SeniorDiscount < 0 || c.Fees.SeniorDiscount > 1 {
		return fmt.Errorf("config.fees.base must be non-negative and senior_discount within [0,1]")
	}
	return nil
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `policy:
  min_adopter_age: 18
  large_housing: house
  large_min_area_m2: 60

reservation:
  hours: 48

scoring:
  weights:
    housing_size: 0.30
    experience: 0.25
    children: 0.20
    other_pets: 0.10
    temperament: 0.15

fees:
  base: 100.0
  senior_discount: 0.5
  senior_from_months: 96
  puppy_surcharge: 50.0
  puppy_up_to_months: 12
  special_surcharge: 80.0
`
