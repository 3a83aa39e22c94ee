// Package report computes shelter statistics from stored animals and
// their histories.
package report

import (
	"context"
	"sort"
	"strings"
	"time"

	"homeward/internal/config"
	"homeward/internal/domain"
	"homeward/internal/repo"
	"homeward/internal/screening"
)

type Reporter struct {
	Repo   repo.Repo
	Config *config.Config
}

func New(r repo.Repo, cfg *config.Config) Reporter {
	return Reporter{Repo: r, Config: cfg}
}

// RankedAnimal is an available animal scored for one adopter.
type RankedAnimal struct {
	Animal *domain.Animal `json:"animal"`
	Score  int            `json:"score"`
}

// TopAdoptable ranks the available animals best first. With an adopter
// name the score is that adopter's compatibility; without one it is
// the mean score over all registered adopters who pass the policy gate
// for the animal. Ties keep the oldest entry first.
func (r Reporter) TopAdoptable(ctx context.Context, adopterName string, limit int) ([]RankedAnimal, error) {
	var adopters []domain.Adopter
	if adopterName != "" {
		a, err := r.Repo.GetAdopter(ctx, adopterName)
		if err != nil {
			return nil, err
		}
		adopters = []domain.Adopter{a}
	} else {
		all, err := r.Repo.ListAdopters(ctx)
		if err != nil {
			return nil, err
		}
		adopters = all
	}
	animals, _ := r.Repo.ListAnimals(ctx, string(domain.StatusAvailable))
	// stable sort below keeps the oldest entry first among ties
	domain.SortAnimals(animals)
	s := screening.New(r.Config)
	ranked := make([]RankedAnimal, 0, len(animals))
	for _, a := range animals {
		ranked = append(ranked, RankedAnimal{Animal: a, Score: meanScore(s, adopters, a)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// meanScore averages the compatibility score over the adopters who
// pass the policy gate for the animal. No eligible adopter means 0.
func meanScore(s screening.Screener, adopters []domain.Adopter, a *domain.Animal) int {
	total, eligible := 0, 0
	for _, adopter := range adopters {
		if err := s.CheckPolicy(adopter, a.Size); err != nil {
			continue
		}
		total += s.Score(adopter, a.Profile())
		eligible++
	}
	if eligible == 0 {
		return 0
	}
	return total / eligible
}

// GroupCount is one bucket of an adoption breakdown.
type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

// AdoptionsByGroup counts adopted animals grouped by "species" or
// "size". Buckets come back largest first.
func (r Reporter) AdoptionsByGroup(ctx context.Context, group string) ([]GroupCount, error) {
	animals, _ := r.Repo.ListAnimals(ctx, string(domain.StatusAdopted))
	counts := map[string]int{}
	for _, a := range animals {
		switch group {
		case "size":
			counts[string(a.Size)]++
		default:
			counts[a.Species]++
		}
	}
	out := make([]GroupCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GroupCount{Group: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Group < out[j].Group
	})
	return out, nil
}

// MeanTimeToAdoption averages the time from shelter entry to the
// adoption event across adopted animals. Records with missing or
// inconsistent timestamps are left out of the average.
func (r Reporter) MeanTimeToAdoption(ctx context.Context) (time.Duration, int, error) {
	animals, _ := r.Repo.ListAnimals(ctx, string(domain.StatusAdopted))
	var total time.Duration
	counted := 0
	for _, a := range animals {
		entered, err := time.Parse(time.RFC3339, a.EnteredAt)
		if err != nil {
			continue
		}
		events, err := r.Repo.ListAnimalEvents(ctx, a.ID)
		if err != nil {
			return 0, 0, err
		}
		for _, e := range events {
			if e.Kind != domain.EventAdoption {
				continue
			}
			adopted, err := time.Parse(time.RFC3339, e.TS)
			if err != nil {
				break
			}
			d := adopted.Sub(entered)
			if d < 0 {
				break
			}
			total += d
			counted++
			break
		}
	}
	if counted == 0 {
		return 0, 0, nil
	}
	return total / time.Duration(counted), counted, nil
}

// ReturnsByReason tallies return events by their recorded reason.
func (r Reporter) ReturnsByReason(ctx context.Context) ([]GroupCount, error) {
	rows, err := r.Repo.DB.QueryContext(ctx, `SELECT detail FROM animal_events WHERE kind=?`, domain.EventReturn)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := map[string]int{}
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, err
		}
		reason := strings.TrimSpace(strings.TrimPrefix(detail, "reason:"))
		if reason == "" {
			reason = "unspecified"
		}
		counts[reason]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]GroupCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GroupCount{Group: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Group < out[j].Group
	})
	return out, nil
}
