package server

import (
	"homeward/internal/domain"
	"homeward/internal/engine"
	"homeward/internal/queue"
)

type RegisterAnimalRequest struct {
	Species     string   `json:"species" enum:"dog,cat"`
	Name        string   `json:"name"`
	Breed       string   `json:"breed"`
	Sex         string   `json:"sex"`
	AgeMonths   int      `json:"age_months"`
	Size        string   `json:"size" enum:"small,medium,large"`
	Trait       int      `json:"trait"`
	Temperament []string `json:"temperament,omitempty"`
}

type RegisterAdopterRequest struct {
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Housing      string `json:"housing" enum:"house,apartment"`
	AreaM2       int    `json:"area_m2"`
	Experienced  bool   `json:"experienced,omitempty"`
	HasChildren  bool   `json:"has_children,omitempty"`
	HasOtherPets bool   `json:"has_other_pets,omitempty"`
}

type ReserveRequest struct {
	Adopter string `json:"adopter"`
}

type AdoptRequest struct {
	Adopter      string `json:"adopter"`
	SpecialNeeds bool   `json:"special_needs,omitempty"`
}

type ReturnRequest struct {
	Reason     string `json:"reason"`
	Quarantine bool   `json:"quarantine,omitempty"`
}

type ReassessRequest struct {
	Outcome string `json:"outcome" enum:"available,unadoptable"`
	Reason  string `json:"reason,omitempty"`
}

type JoinWaitlistRequest struct {
	Adopter string `json:"adopter"`
}

type AnimalEventRequest struct {
	Kind   string `json:"kind" enum:"VACCINATION,NOTE"`
	Detail string `json:"detail"`
}

type AnimalResponse struct {
	ID          string              `json:"id"`
	EnteredAt   string              `json:"entered_at"`
	Species     string              `json:"species"`
	Breed       string              `json:"breed"`
	Name        string              `json:"name"`
	Sex         string              `json:"sex"`
	AgeMonths   int                 `json:"age_months"`
	Size        string              `json:"size"`
	Trait       int                 `json:"trait"`
	Temperament []string            `json:"temperament,omitempty"`
	Status      string              `json:"status"`
	Reservation *domain.Reservation `json:"reservation,omitempty"`
}

func animalResponse(a *domain.Animal) AnimalResponse {
	return AnimalResponse{
		ID:          a.ID,
		EnteredAt:   a.EnteredAt,
		Species:     a.Species,
		Breed:       a.Breed,
		Name:        a.Name,
		Sex:         a.Sex,
		AgeMonths:   a.AgeMonths,
		Size:        string(a.Size),
		Trait:       a.Trait,
		Temperament: a.Temperament,
		Status:      string(a.Status),
		Reservation: a.Reservation,
	}
}

func mapAnimals(animals []*domain.Animal) []AnimalResponse {
	out := make([]AnimalResponse, 0, len(animals))
	for _, a := range animals {
		out = append(out, animalResponse(a))
	}
	return out
}

type AdoptionResponse struct {
	Animal   AnimalResponse      `json:"animal"`
	Fee      engine.FeeBreakdown `json:"fee"`
	Contract string              `json:"contract"`
}

type PromotionResponse struct {
	Entry  queue.Entry    `json:"entry"`
	Animal AnimalResponse `json:"animal"`
}

type SweepResponse struct {
	Expired []string `json:"expired"`
	Count   int      `json:"count"`
}
