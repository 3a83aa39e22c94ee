package domain

import (
	"fmt"
	"strings"
)

// Housing is the adopter's housing type.
type Housing string

const (
	HousingHouse     Housing = "house"
	HousingApartment Housing = "apartment"
)

// ParseHousing accepts the stored housing strings.
func ParseHousing(s string) (Housing, error) {
	switch Housing(strings.ToLower(strings.TrimSpace(s))) {
	case HousingHouse:
		return HousingHouse, nil
	case HousingApartment:
		return HousingApartment, nil
	}
	return "", fmt.Errorf("unknown housing type %q (use house or apartment)", s)
}

// Adopter is a person interested in adopting. The name is the
// practical identity key: no two adopters share a name in a
// workspace. Immutable once registered.
type Adopter struct {
	Name         string  `json:"name"`
	Age          int     `json:"age"`
	Housing      Housing `json:"housing" enum:"house,apartment"`
	AreaM2       int     `json:"area_m2"`
	Experienced  bool    `json:"experienced"`
	HasChildren  bool    `json:"has_children"`
	HasOtherPets bool    `json:"has_other_pets"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// ValidateAdopter checks the registration fields.
func ValidateAdopter(a Adopter) error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("adopter name is required")
	}
	if a.Age < 0 {
		return fmt.Errorf("age cannot be negative: %d", a.Age)
	}
	if _, err := ParseHousing(string(a.Housing)); err != nil {
		return err
	}
	if a.AreaM2 <= 0 {
		return fmt.Errorf("usable area must be positive: %d", a.AreaM2)
	}
	return nil
}
