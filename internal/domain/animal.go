package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Size is the physical size class of an animal. It constrains the
// reservation policy for large animals.
type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

// ParseSize accepts the stored size strings.
func ParseSize(s string) (Size, error) {
	switch Size(strings.ToLower(strings.TrimSpace(s))) {
	case SizeSmall:
		return SizeSmall, nil
	case SizeMedium:
		return SizeMedium, nil
	case SizeLarge:
		return SizeLarge, nil
	}
	return "", fmt.Errorf("unknown size %q (use small, medium or large)", s)
}

// Species tags for the sealed set of animal variants.
const (
	SpeciesDog = "dog"
	SpeciesCat = "cat"
)

// TraitName returns the name of the species-specific 0-10 trait:
// how much walking a dog needs, how independent a cat is.
func TraitName(species string) string {
	switch species {
	case SpeciesDog:
		return "walk_need"
	case SpeciesCat:
		return "independence"
	default:
		return "trait"
	}
}

// Event kinds appended to an animal's history.
const (
	EventEntry              = "ENTRY"
	EventStatusChange       = "STATUS_CHANGE"
	EventScreening          = "SCREENING"
	EventReservation        = "RESERVATION"
	EventReservationExpired = "RESERVATION_EXPIRED"
	EventAdoption           = "ADOPTION"
	EventReturn             = "RETURN"
	EventVaccination        = "VACCINATION"
	EventNote               = "NOTE"
)

// Event is one append-only history entry on an animal.
type Event struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
	TS     string `json:"ts" format:"date-time"`
}

// Reservation pairs the holder with the deadline. It is assigned and
// cleared as a whole, so the two fields can never drift apart.
type Reservation struct {
	Holder string `json:"holder"`
	Until  string `json:"until" format:"date-time"`
}

// Animal is a shelter animal with its lifecycle state and history.
// Status only moves through ChangeStatus; History only grows.
type Animal struct {
	ID          string       `json:"id"`
	EnteredAt   string       `json:"entered_at" format:"date-time"`
	Species     string       `json:"species" enum:"dog,cat"`
	Breed       string       `json:"breed"`
	Name        string       `json:"name"`
	Sex         string       `json:"sex"`
	AgeMonths   int          `json:"age_months"`
	Size        Size         `json:"size" enum:"small,medium,large"`
	Trait       int          `json:"trait"`
	Temperament []string     `json:"temperament,omitempty"`
	Status      Status       `json:"status"`
	Reservation *Reservation `json:"reservation,omitempty"`
	History     []Event      `json:"history"`
}

// AnimalSpec carries the caller-supplied fields for a new animal.
type AnimalSpec struct {
	Breed       string
	Name        string
	Sex         string
	AgeMonths   int
	Size        Size
	Trait       int
	Temperament []string
}

// NewDog registers a dog. Trait is the walk need (0-10).
func NewDog(spec AnimalSpec, now time.Time) (*Animal, error) {
	return newAnimal(SpeciesDog, spec, now)
}

// NewCat registers a cat. Trait is the independence level (0-10).
func NewCat(spec AnimalSpec, now time.Time) (*Animal, error) {
	return newAnimal(SpeciesCat, spec, now)
}

func newAnimal(species string, spec AnimalSpec, now time.Time) (*Animal, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("animal name is required")
	}
	if strings.TrimSpace(spec.Breed) == "" {
		return nil, fmt.Errorf("animal breed is required")
	}
	if strings.TrimSpace(spec.Sex) == "" {
		return nil, fmt.Errorf("animal sex is required")
	}
	if spec.AgeMonths < 0 {
		return nil, fmt.Errorf("age in months cannot be negative: %d", spec.AgeMonths)
	}
	if _, err := ParseSize(string(spec.Size)); err != nil {
		return nil, err
	}
	if spec.Trait < 0 || spec.Trait > 10 {
		return nil, fmt.Errorf("%s must be between 0 and 10: %d", TraitName(species), spec.Trait)
	}
	a := &Animal{
		ID:          uuid.New().String(),
		EnteredAt:   now.UTC().Format(time.RFC3339),
		Species:     species,
		Breed:       strings.TrimSpace(spec.Breed),
		Name:        strings.TrimSpace(spec.Name),
		Sex:         strings.TrimSpace(spec.Sex),
		AgeMonths:   spec.AgeMonths,
		Size:        spec.Size,
		Trait:       spec.Trait,
		Temperament: normalizeTemperament(spec.Temperament),
		Status:      StatusAvailable,
	}
	a.appendEvent(EventEntry, fmt.Sprintf("registered with status %s", a.Status), now)
	return a, nil
}

// normalizeTemperament lowercases, trims and dedupes tags, keeping
// first-seen order.
func normalizeTemperament(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// HasTemperament reports whether the animal carries a behavior tag.
func (a *Animal) HasTemperament(tag string) bool {
	for _, t := range a.Temperament {
		if t == tag {
			return true
		}
	}
	return false
}

// ChangeStatus validates the transition, then updates the status and
// appends a STATUS_CHANGE event. On a validation error nothing
// changes and the error is returned for the caller to handle.
func (a *Animal) ChangeStatus(to Status, reason string, now time.Time) error {
	if err := ValidateTransition(a.Status, to); err != nil {
		return err
	}
	detail := fmt.Sprintf("%s -> %s", a.Status, to)
	if reason != "" {
		detail += " | reason: " + reason
	}
	a.Status = to
	a.appendEvent(EventStatusChange, detail, now)
	return nil
}

// SetReservation assigns the reservation value. Callers pair this
// with the reserved transition.
func (a *Animal) SetReservation(holder string, until time.Time) {
	a.Reservation = &Reservation{Holder: holder, Until: until.UTC().Format(time.RFC3339)}
}

// ClearReservation drops the reservation value. Callers pair this
// with the transition away from reserved.
func (a *Animal) ClearReservation() {
	a.Reservation = nil
}

// AppendEvent records a non-status fact (vaccination, screening
// outcome, a free-form note). It always succeeds.
func (a *Animal) AppendEvent(kind, detail string, now time.Time) {
	a.appendEvent(kind, detail, now)
}

func (a *Animal) appendEvent(kind, detail string, now time.Time) {
	a.History = append(a.History, Event{
		Kind:   kind,
		Detail: detail,
		TS:     now.UTC().Format(time.RFC3339),
	})
}

// Profile is the subset of animal fields the screening and queue
// logic needs, so tests can build stand-ins without a full Animal.
type Profile struct {
	ID          string
	Size        Size
	Temperament []string
}

// Profile projects the animal onto its screening view.
func (a *Animal) Profile() Profile {
	return Profile{ID: a.ID, Size: a.Size, Temperament: append([]string(nil), a.Temperament...)}
}

// HasTag reports whether the profile carries a behavior tag.
func (p Profile) HasTag(tag string) bool {
	for _, t := range p.Temperament {
		if t == tag {
			return true
		}
	}
	return false
}

// SortAnimals orders animals oldest entry first, id as tie-break.
func SortAnimals(animals []*Animal) {
	sort.Slice(animals, func(i, j int) bool {
		if animals[i].EnteredAt != animals[j].EnteredAt {
			return animals[i].EnteredAt < animals[j].EnteredAt
		}
		return animals[i].ID < animals[j].ID
	})
}
