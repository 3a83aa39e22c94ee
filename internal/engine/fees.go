package engine

import (
	"homeward/internal/domain"
)

// FeeAdjustment is one labeled change to the base adoption fee.
type FeeAdjustment struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// FeeBreakdown itemizes the adoption fee.
type FeeBreakdown struct {
	Base        float64         `json:"base"`
	Adjustments []FeeAdjustment `json:"adjustments,omitempty"`
	Total       float64         `json:"total"`
}

// adoptionFee prices an adoption from the configured fee schedule.
// Seniors get a percentage off the base, puppies and special-needs
// animals carry flat surcharges. Senior and puppy cannot both apply.
func (e Engine) adoptionFee(a *domain.Animal, specialNeeds bool) FeeBreakdown {
	f := e.Config.Fees
	out := FeeBreakdown{Base: f.Base, Total: f.Base}

	switch {
	case f.SeniorFromMonths > 0 && a.AgeMonths >= f.SeniorFromMonths:
		discount := -f.Base * f.SeniorDiscount
		out.Adjustments = append(out.Adjustments, FeeAdjustment{Label: "senior discount", Amount: discount})
		out.Total += discount
	case f.PuppyUpToMonths > 0 && a.AgeMonths <= f.PuppyUpToMonths:
		out.Adjustments = append(out.Adjustments, FeeAdjustment{Label: "young animal surcharge", Amount: f.PuppySurcharge})
		out.Total += f.PuppySurcharge
	}
	if specialNeeds {
		out.Adjustments = append(out.Adjustments, FeeAdjustment{Label: "special needs care", Amount: f.SpecialSurcharge})
		out.Total += f.SpecialSurcharge
	}
	if out.Total < 0 {
		out.Total = 0
	}
	return out
}
