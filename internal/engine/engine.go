package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homeward/internal/config"
	"homeward/internal/contract"
	"homeward/internal/domain"
	"homeward/internal/events"
	"homeward/internal/queue"
	"homeward/internal/repo"
	"homeward/internal/screening"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) screener() screening.Screener {
	return screening.New(e.Config)
}

// RegisterDog adds a dog to the shelter, available immediately.
func (e Engine) RegisterDog(ctx context.Context, spec domain.AnimalSpec, actorID string) (*domain.Animal, error) {
	a, err := domain.NewDog(spec, e.now())
	if err != nil {
		return nil, err
	}
	return a, e.insertAnimal(ctx, a, actorID)
}

// RegisterCat adds a cat to the shelter, available immediately.
func (e Engine) RegisterCat(ctx context.Context, spec domain.AnimalSpec, actorID string) (*domain.Animal, error) {
	a, err := domain.NewCat(spec, e.now())
	if err != nil {
		return nil, err
	}
	return a, e.insertAnimal(ctx, a, actorID)
}

func (e Engine) insertAnimal(ctx context.Context, a *domain.Animal, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAnimalTx(ctx, tx, a); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "animal.registered", "animal", a.ID, actorID, events.EventPayload{
		"species": a.Species,
		"name":    a.Name,
		"size":    string(a.Size),
		"status":  string(a.Status),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// RegisterAdopter stores an adopter profile. Names are unique per
// workspace, so a duplicate registration fails on the primary key.
func (e Engine) RegisterAdopter(ctx context.Context, a domain.Adopter, actorID string) (domain.Adopter, error) {
	if err := domain.ValidateAdopter(a); err != nil {
		return domain.Adopter{}, err
	}
	a.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Adopter{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertAdopterTx(ctx, tx, a); err != nil {
		return domain.Adopter{}, err
	}
	if err := e.Events.Append(ctx, tx, "adopter.registered", "adopter", a.Name, actorID, events.EventPayload{
		"housing": string(a.Housing),
	}); err != nil {
		return domain.Adopter{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Adopter{}, err
	}
	return a, nil
}

// ScreeningResult is the outcome of checking one adopter against one
// animal. The score is computed even when the hard policy fails, so
// callers can still rank candidates.
type ScreeningResult struct {
	AnimalID string   `json:"animal_id"`
	Adopter  string   `json:"adopter"`
	Score    int      `json:"score"`
	Eligible bool     `json:"eligible"`
	Rules    []string `json:"rules,omitempty"`
}

// Screen evaluates an adopter against an animal and records the
// outcome in the animal's history.
func (e Engine) Screen(ctx context.Context, animalID, adopterName, actorID string) (ScreeningResult, error) {
	a, err := e.Repo.GetAnimal(ctx, animalID)
	if err != nil {
		return ScreeningResult{}, err
	}
	adopter, err := e.Repo.GetAdopter(ctx, adopterName)
	if err != nil {
		return ScreeningResult{}, err
	}
	s := e.screener()
	result := ScreeningResult{
		AnimalID: a.ID,
		Adopter:  adopter.Name,
		Score:    s.Score(adopter, a.Profile()),
		Eligible: true,
	}
	var policyErr *screening.PolicyNotMetError
	if err := s.CheckPolicy(adopter, a.Size); errors.As(err, &policyErr) {
		result.Eligible = false
		result.Rules = policyErr.Rules
	} else if err != nil {
		return ScreeningResult{}, err
	}

	base := len(a.History)
	detail := fmt.Sprintf("adopter %s scored %d", adopter.Name, result.Score)
	if !result.Eligible {
		detail += " (policy not met)"
	}
	a.AppendEvent(domain.EventScreening, detail, e.now())

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ScreeningResult{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
		return ScreeningResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "screening.done", "animal", a.ID, actorID, events.EventPayload{
		"adopter":  adopter.Name,
		"score":    result.Score,
		"eligible": result.Eligible,
	}); err != nil {
		return ScreeningResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ScreeningResult{}, err
	}
	return result, nil
}

// JoinWaitlist puts an adopter on an animal's waiting list. The score
// is frozen at enqueue time; the hard policy gate is re-checked at
// promotion, since circumstances decide then, not now.
func (e Engine) JoinWaitlist(ctx context.Context, animalID, adopterName, actorID string) (queue.Entry, error) {
	a, err := e.Repo.GetAnimal(ctx, animalID)
	if err != nil {
		return queue.Entry{}, err
	}
	adopter, err := e.Repo.GetAdopter(ctx, adopterName)
	if err != nil {
		return queue.Entry{}, err
	}
	score := e.screener().Score(adopter, a.Profile())
	enqueuedAt := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return queue.Entry{}, err
	}
	defer tx.Rollback()

	arrival, err := e.Repo.EnqueueWaitlistTx(ctx, tx, a.ID, adopter.Name, score, enqueuedAt)
	if err != nil {
		return queue.Entry{}, err
	}
	if err := e.Events.Append(ctx, tx, "waitlist.joined", "animal", a.ID, actorID, events.EventPayload{
		"adopter": adopter.Name,
		"score":   score,
	}); err != nil {
		return queue.Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return queue.Entry{}, err
	}
	return queue.Entry{Adopter: adopter.Name, Score: score, Arrival: arrival, EnqueuedAt: enqueuedAt}, nil
}

// Waitlist returns an animal's waiting list in promotion order.
func (e Engine) Waitlist(ctx context.Context, animalID string) ([]queue.Entry, error) {
	if _, err := e.Repo.GetAnimal(ctx, animalID); err != nil {
		return nil, err
	}
	q, err := e.Repo.LoadWaitlist(ctx, animalID)
	if err != nil {
		return nil, err
	}
	return q.Entries(), nil
}

// AdoptOptions are the parameters for finalizing an adoption.
type AdoptOptions struct {
	AnimalID     string
	AdopterName  string
	SpecialNeeds bool
	ActorID      string
}

// AdoptionResult bundles the updated animal with the fee breakdown
// and the generated contract text.
type AdoptionResult struct {
	Animal   *domain.Animal `json:"animal"`
	Fee      FeeBreakdown   `json:"fee"`
	Contract string         `json:"contract"`
}

// Adopt finalizes an adoption. The animal must be reserved by the
// same adopter and the reservation must still be live; an expired
// reservation is healed back to available and the adoption refused.
func (e Engine) Adopt(ctx context.Context, opts AdoptOptions) (AdoptionResult, error) {
	a, err := e.Repo.GetAnimal(ctx, opts.AnimalID)
	if err != nil {
		return AdoptionResult{}, err
	}
	adopter, err := e.Repo.GetAdopter(ctx, opts.AdopterName)
	if err != nil {
		return AdoptionResult{}, err
	}
	now := e.now()
	if a.Status == domain.StatusReserved && reservationExpired(a.Reservation, now) {
		if err := e.expireReservation(ctx, a, opts.ActorID); err != nil {
			return AdoptionResult{}, err
		}
		return AdoptionResult{}, fmt.Errorf("reservation for %s expired; animal returned to available", a.Name)
	}
	if a.Status != domain.StatusReserved || a.Reservation == nil {
		return AdoptionResult{}, domain.ValidateTransition(a.Status, domain.StatusAdopted)
	}
	if a.Reservation.Holder != adopter.Name {
		return AdoptionResult{}, fmt.Errorf("animal is reserved by %s, not %s", a.Reservation.Holder, adopter.Name)
	}

	fee := e.adoptionFee(a, opts.SpecialNeeds)
	text := contract.Render(a, adopter, fee.Total, now)

	base := len(a.History)
	if err := a.ChangeStatus(domain.StatusAdopted, "adoption finalized by "+adopter.Name, now); err != nil {
		return AdoptionResult{}, err
	}
	a.ClearReservation()
	a.AppendEvent(domain.EventAdoption, fmt.Sprintf("adopted by %s | fee: %.2f", adopter.Name, fee.Total), now)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AdoptionResult{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
		return AdoptionResult{}, err
	}
	if err := e.Events.Append(ctx, tx, "adoption.finalized", "animal", a.ID, opts.ActorID, events.EventPayload{
		"adopter": adopter.Name,
		"fee":     fee.Total,
	}); err != nil {
		return AdoptionResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return AdoptionResult{}, err
	}
	return AdoptionResult{Animal: a, Fee: fee, Contract: text}, nil
}

// ReturnOptions are the parameters for taking an animal back.
type ReturnOptions struct {
	AnimalID   string
	Reason     string
	Quarantine bool
	ActorID    string
}

// Return takes an adopted animal back. With Quarantine set the animal
// moves on to quarantine for a health check in the same operation.
func (e Engine) Return(ctx context.Context, opts ReturnOptions) (*domain.Animal, error) {
	if opts.Reason == "" {
		return nil, errors.New("a return reason is required")
	}
	a, err := e.Repo.GetAnimal(ctx, opts.AnimalID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	base := len(a.History)
	if err := a.ChangeStatus(domain.StatusReturned, opts.Reason, now); err != nil {
		return nil, err
	}
	a.AppendEvent(domain.EventReturn, "reason: "+opts.Reason, now)
	if opts.Quarantine {
		if err := a.ChangeStatus(domain.StatusQuarantine, "health check after return", now); err != nil {
			return nil, err
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "animal.returned", "animal", a.ID, opts.ActorID, events.EventPayload{
		"reason":     opts.Reason,
		"quarantine": opts.Quarantine,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// Reassess moves a returned or quarantined animal to its next state:
// back to available, or unadoptable when rehoming is ruled out.
func (e Engine) Reassess(ctx context.Context, animalID string, outcome domain.Status, reason, actorID string) (*domain.Animal, error) {
	if outcome != domain.StatusAvailable && outcome != domain.StatusUnadoptable {
		return nil, fmt.Errorf("reassessment outcome must be %s or %s, got %s", domain.StatusAvailable, domain.StatusUnadoptable, outcome)
	}
	a, err := e.Repo.GetAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	base := len(a.History)
	if err := a.ChangeStatus(outcome, reason, e.now()); err != nil {
		return nil, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "animal.reassessed", "animal", a.ID, actorID, events.EventPayload{
		"outcome": string(outcome),
		"reason":  reason,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

// AddAnimalEvent records a free-form history fact such as a
// vaccination or a caretaker note.
func (e Engine) AddAnimalEvent(ctx context.Context, animalID, kind, detail, actorID string) (*domain.Animal, error) {
	switch kind {
	case domain.EventVaccination, domain.EventNote:
	default:
		return nil, fmt.Errorf("event kind must be %s or %s", domain.EventVaccination, domain.EventNote)
	}
	if detail == "" {
		return nil, errors.New("event detail is required")
	}
	a, err := e.Repo.GetAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	base := len(a.History)
	a.AppendEvent(kind, detail, e.now())

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "animal.event", "animal", a.ID, actorID, events.EventPayload{
		"kind": kind,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}
