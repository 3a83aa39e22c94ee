package screening

import (
	"errors"
	"strings"
	"testing"

	"homeward/internal/config"
	"homeward/internal/domain"
)

func newScreener() Screener {
	return New(config.Default())
}

func idealAdopter() domain.Adopter {
	return domain.Adopter{
		Name:        "Marina",
		Age:         30,
		Housing:     domain.HousingHouse,
		AreaM2:      100,
		Experienced: true,
	}
}

func largeDocileDog() domain.Profile {
	return domain.Profile{ID: "a1", Size: domain.SizeLarge, Temperament: []string{"docile"}}
}

func TestMaximalAdopterScoresHundred(t *testing.T) {
	s := newScreener()
	got := s.Score(idealAdopter(), largeDocileDog())
	if got != 100 {
		t.Fatalf("score = %d, want 100", got)
	}
}

func TestScoreAlwaysWithinRange(t *testing.T) {
	s := newScreener()
	housings := []domain.Housing{domain.HousingHouse, domain.HousingApartment}
	sizes := []domain.Size{domain.SizeSmall, domain.SizeMedium, domain.SizeLarge}
	temperaments := [][]string{nil, {"skittish"}, {"aggressive"}, {"docile"}, {"sociable", "calm"}}
	bools := []bool{false, true}
	for _, h := range housings {
		for _, size := range sizes {
			for _, temp := range temperaments {
				for _, exp := range bools {
					for _, kids := range bools {
						for _, pets := range bools {
							a := domain.Adopter{Name: "x", Age: 40, Housing: h, AreaM2: 30,
								Experienced: exp, HasChildren: kids, HasOtherPets: pets}
							p := domain.Profile{ID: "p", Size: size, Temperament: temp}
							got := s.Score(a, p)
							if got < 0 || got > 100 {
								t.Fatalf("score %d out of range for %+v vs %+v", got, a, p)
							}
						}
					}
				}
			}
		}
	}
}

func TestUnderageFailsGateButScoreStillComputes(t *testing.T) {
	s := newScreener()
	minor := idealAdopter()
	minor.Age = 16
	for _, size := range []domain.Size{domain.SizeSmall, domain.SizeMedium, domain.SizeLarge} {
		err := s.CheckPolicy(minor, size)
		var pe *PolicyNotMetError
		if !errors.As(err, &pe) {
			t.Fatalf("size %s: expected PolicyNotMetError, got %v", size, err)
		}
	}
	got := s.Score(minor, largeDocileDog())
	if got < 0 || got > 100 {
		t.Fatalf("score for ineligible adopter out of range: %d", got)
	}
}

func TestLargeAnimalHousingAndAreaGate(t *testing.T) {
	s := newScreener()
	a := idealAdopter()
	a.Housing = domain.HousingApartment
	a.AreaM2 = 40
	err := s.CheckPolicy(a, domain.SizeLarge)
	var pe *PolicyNotMetError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PolicyNotMetError, got %v", err)
	}
	// both unmet rules reported
	if len(pe.Rules) != 2 {
		t.Fatalf("rules = %v", pe.Rules)
	}
	// same adopter is fine for a small animal
	if err := s.CheckPolicy(a, domain.SizeSmall); err != nil {
		t.Fatalf("small animal should pass: %v", err)
	}
}

func TestChildrenPenaltyOnlyForSkittishAnimals(t *testing.T) {
	s := newScreener()
	withKids := idealAdopter()
	withKids.HasChildren = true

	calm := domain.Profile{ID: "c", Size: domain.SizeSmall, Temperament: []string{"calm"}}
	skittish := domain.Profile{ID: "s", Size: domain.SizeSmall, Temperament: []string{"skittish"}}

	if got, want := s.Score(withKids, calm), 100; got != want {
		t.Errorf("calm animal score = %d, want %d", got, want)
	}
	penalized := s.Score(withKids, skittish)
	if penalized >= 100 {
		t.Errorf("skittish+children score not penalized: %d", penalized)
	}
}

func TestEvaluateGatesThenScores(t *testing.T) {
	s := newScreener()
	score, err := s.Evaluate(idealAdopter(), largeDocileDog())
	if err != nil || score != 100 {
		t.Fatalf("evaluate = %d, %v", score, err)
	}
	minor := idealAdopter()
	minor.Age = 12
	_, err = s.Evaluate(minor, largeDocileDog())
	var pe *PolicyNotMetError
	if !errors.As(err, &pe) || !strings.Contains(err.Error(), "18") {
		t.Fatalf("expected gate failure mentioning minimum age, got %v", err)
	}
}
