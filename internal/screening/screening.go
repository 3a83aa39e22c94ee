// Package screening validates adopters against the shelter's hard
// eligibility policy and computes the adopter/animal compatibility
// score used for ranking and queue priority.
package screening

import (
	"fmt"
	"strings"

	"homeward/internal/config"
	"homeward/internal/domain"
)

// PolicyNotMetError lists every hard policy rule the adopter failed.
type PolicyNotMetError struct {
	Rules []string
}

func (e *PolicyNotMetError) Error() string {
	return "adopter does not meet policy: " + strings.Join(e.Rules, "; ")
}

// Behavior tags that penalize the children criterion.
var skittishTags = []string{"skittish", "aggressive"}

// Tags that earn the temperament bonus.
var gentleTags = []string{"docile", "calm", "gentle", "sociable"}

// Screener applies policy gates and computes compatibility scores.
type Screener struct {
	cfg *config.Config
}

// New builds a Screener from an explicit config; no ambient state.
func New(cfg *config.Config) Screener {
	return Screener{cfg: cfg}
}

// CheckPolicy is the hard gate. It collects every unmet rule rather
// than stopping at the first: minimum age always applies, housing
// type and minimum area apply to large animals.
func (s Screener) CheckPolicy(adopter domain.Adopter, size domain.Size) error {
	var rules []string
	if adopter.Age < s.cfg.Policy.MinAdopterAge {
		rules = append(rules, fmt.Sprintf("adopter must be at least %d years old (is %d)", s.cfg.Policy.MinAdopterAge, adopter.Age))
	}
	if size == domain.SizeLarge {
		if string(adopter.Housing) != s.cfg.Policy.LargeHousing {
			rules = append(rules, fmt.Sprintf("large animals require %s housing (adopter has %s)", s.cfg.Policy.LargeHousing, adopter.Housing))
		}
		if adopter.AreaM2 < s.cfg.Policy.LargeMinAreaM2 {
			rules = append(rules, fmt.Sprintf("large animals require at least %dm² (adopter has %dm²)", s.cfg.Policy.LargeMinAreaM2, adopter.AreaM2))
		}
	}
	if len(rules) > 0 {
		return &PolicyNotMetError{Rules: rules}
	}
	return nil
}

// Score computes the 0-100 compatibility score. It is independent of
// the hard gate so wait-list candidates can still be ranked when the
// gate fails.
func (s Screener) Score(adopter domain.Adopter, animal domain.Profile) int {
	w := s.cfg.Scoring.Weights
	score := 0.0

	// housing vs size: large animals want a house, anything else fits
	// any housing
	if animal.Size == domain.SizeLarge && adopter.Housing != domain.HousingHouse {
		score += w.HousingSize * 50
	} else {
		score += w.HousingSize * 100
	}

	if adopter.Experienced {
		score += w.Experience * 100
	} else {
		score += w.Experience * 60
	}

	if adopter.HasChildren && hasAnyTag(animal, skittishTags) {
		score += w.Children * 20
	} else {
		score += w.Children * 100
	}

	if w.OtherPets > 0 {
		switch {
		case !adopter.HasOtherPets:
			score += w.OtherPets * 100
		case animal.HasTag("sociable"):
			score += w.OtherPets * 100
		default:
			score += w.OtherPets * 50
		}
	}

	if w.Temperament > 0 {
		if hasAnyTag(animal, gentleTags) {
			score += w.Temperament * 100
		} else {
			score += w.Temperament * 70
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// Evaluate runs the hard gate and, only if it passes, returns the
// score. Callers needing a score despite gate failure call Score
// directly.
func (s Screener) Evaluate(adopter domain.Adopter, animal domain.Profile) (int, error) {
	if err := s.CheckPolicy(adopter, animal.Size); err != nil {
		return 0, err
	}
	return s.Score(adopter, animal), nil
}

func hasAnyTag(p domain.Profile, tags []string) bool {
	for _, t := range tags {
		if p.HasTag(t) {
			return true
		}
	}
	return false
}
