package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDog(t *testing.T) *Animal {
	t.Helper()
	a, err := NewDog(AnimalSpec{
		Breed:       "Labrador",
		Name:        "Rex",
		Sex:         "M",
		AgeMonths:   24,
		Size:        SizeLarge,
		Trait:       8,
		Temperament: []string{"Docile", "energetic", "docile"},
	}, testNow)
	if err != nil {
		t.Fatalf("new dog: %v", err)
	}
	return a
}

func TestNewAnimalAppendsEntryEvent(t *testing.T) {
	a := newTestDog(t)
	if a.Status != StatusAvailable {
		t.Fatalf("status = %s, want available", a.Status)
	}
	if len(a.History) != 1 || a.History[0].Kind != EventEntry {
		t.Fatalf("expected single ENTRY event, got %+v", a.History)
	}
	if a.ID == "" || a.EnteredAt == "" {
		t.Fatalf("id/entered_at not set")
	}
	// temperament is lowercased and deduped
	if len(a.Temperament) != 2 || a.Temperament[0] != "docile" {
		t.Fatalf("temperament = %v", a.Temperament)
	}
}

func TestNewAnimalValidation(t *testing.T) {
	if _, err := NewDog(AnimalSpec{Breed: "x", Name: "y", Sex: "M", Size: SizeSmall, Trait: 11}, testNow); err == nil {
		t.Fatalf("expected trait range error")
	}
	if _, err := NewCat(AnimalSpec{Breed: "x", Name: "", Sex: "F", Size: SizeSmall}, testNow); err == nil {
		t.Fatalf("expected name error")
	}
	if _, err := NewCat(AnimalSpec{Breed: "x", Name: "y", Sex: "F", Size: "huge"}, testNow); err == nil {
		t.Fatalf("expected size error")
	}
}

func TestChangeStatusAppendsEvent(t *testing.T) {
	a := newTestDog(t)
	if err := a.ChangeStatus(StatusReserved, "reserved by Ana", testNow); err != nil {
		t.Fatalf("to reserved: %v", err)
	}
	last := a.History[len(a.History)-1]
	if last.Kind != EventStatusChange {
		t.Fatalf("kind = %s", last.Kind)
	}
	if !strings.Contains(last.Detail, "available -> reserved") || !strings.Contains(last.Detail, "reason: reserved by Ana") {
		t.Fatalf("detail = %q", last.Detail)
	}
}

func TestChangeStatusInvalidLeavesStateUntouched(t *testing.T) {
	a := newTestDog(t)
	before := len(a.History)
	err := a.ChangeStatus(StatusAdopted, "", testNow)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if a.Status != StatusAvailable || len(a.History) != before {
		t.Fatalf("state mutated on failed transition")
	}
}

func TestReservationSetAndClearAsOneValue(t *testing.T) {
	a := newTestDog(t)
	until := testNow.Add(48 * time.Hour)
	a.SetReservation("Ana", until)
	if a.Reservation == nil || a.Reservation.Holder != "Ana" || a.Reservation.Until != until.Format(time.RFC3339) {
		t.Fatalf("reservation = %+v", a.Reservation)
	}
	a.ClearReservation()
	if a.Reservation != nil {
		t.Fatalf("reservation not cleared")
	}
}

func TestSortAnimalsByEntryDate(t *testing.T) {
	older, _ := NewCat(AnimalSpec{Breed: "Siamese", Name: "Mimi", Sex: "F", Size: SizeSmall, Trait: 7}, testNow.Add(-time.Hour))
	newer, _ := NewCat(AnimalSpec{Breed: "Persian", Name: "Luna", Sex: "F", Size: SizeSmall, Trait: 5}, testNow)
	animals := []*Animal{newer, older}
	SortAnimals(animals)
	if animals[0] != older {
		t.Fatalf("expected oldest entry first")
	}
}

func TestProfileSubset(t *testing.T) {
	a := newTestDog(t)
	p := a.Profile()
	if p.ID != a.ID || p.Size != SizeLarge || !p.HasTag("docile") {
		t.Fatalf("profile = %+v", p)
	}
}
