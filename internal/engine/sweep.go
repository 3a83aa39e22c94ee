package engine

import (
	"context"
	"errors"

	"homeward/internal/domain"
	"homeward/internal/events"
	"homeward/internal/queue"
	"homeward/internal/repo"
)

// SweepReservations releases every reservation past its deadline and
// returns the affected animal IDs. The whole sweep commits as one
// transaction. Reserved rows whose hold record is incomplete are
// released too; a broken record must not keep an animal off the
// adoption floor.
func (e Engine) SweepReservations(ctx context.Context, actorID string) ([]string, error) {
	reserved, warnings := e.Repo.ListAnimals(ctx, string(domain.StatusReserved))
	if len(warnings) > 0 {
		return nil, warnings[0]
	}
	now := e.now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var expired []string
	for _, a := range reserved {
		base := len(a.History)
		switch {
		case a.Status != domain.StatusReserved:
			// the load boundary already corrected an incomplete hold;
			// persist the correction
			a.AppendEvent(domain.EventReservationExpired, "reservation record incomplete", now)
		case reservationExpired(a.Reservation, now):
			a.AppendEvent(domain.EventReservationExpired, expiryDetail(a.Reservation), now)
			if err := a.ChangeStatus(domain.StatusAvailable, "reservation expired", now); err != nil {
				return nil, err
			}
			a.ClearReservation()
		default:
			continue
		}
		if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
			return nil, err
		}
		if err := e.Events.Append(ctx, tx, "reservation.expired", "animal", a.ID, actorID, events.EventPayload{}); err != nil {
			return nil, err
		}
		expired = append(expired, a.ID)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return expired, nil
}

// PromoteNext hands a freed animal to the best waiting adopter. It
// pops candidates in priority order, dropping any who no longer pass
// the hard policy, and reserves the animal for the first who does.
// Dropped and promoted entries leave the list in the same
// transaction as the new hold.
func (e Engine) PromoteNext(ctx context.Context, animalID, actorID string) (queue.Entry, *domain.Animal, error) {
	a, err := e.Repo.GetAnimal(ctx, animalID)
	if err != nil {
		return queue.Entry{}, nil, err
	}
	q, err := e.Repo.LoadWaitlist(ctx, animalID)
	if err != nil {
		return queue.Entry{}, nil, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return queue.Entry{}, nil, err
	}
	defer tx.Rollback()

	for {
		entry, err := q.Pop()
		if err != nil {
			// commit the removal of any dropped candidates before
			// reporting the empty list
			if commitErr := tx.Commit(); commitErr != nil {
				return queue.Entry{}, nil, commitErr
			}
			return queue.Entry{}, nil, err
		}
		if err := e.Repo.DeleteWaitlistEntryTx(ctx, tx, entry.Arrival); err != nil {
			return queue.Entry{}, nil, err
		}
		adopter, err := e.Repo.GetAdopter(ctx, entry.Adopter)
		if errors.Is(err, repo.ErrNotFound) {
			continue
		}
		if err != nil {
			return queue.Entry{}, nil, err
		}
		if err := e.screener().CheckPolicy(adopter, a.Size); err != nil {
			if appendErr := e.Events.Append(ctx, tx, "waitlist.dropped", "animal", a.ID, actorID, events.EventPayload{
				"adopter": adopter.Name,
				"reason":  err.Error(),
			}); appendErr != nil {
				return queue.Entry{}, nil, appendErr
			}
			continue
		}
		updated, err := e.reserveTx(ctx, tx, animalID, adopter.Name, actorID)
		if err != nil {
			return queue.Entry{}, nil, err
		}
		if err := e.Events.Append(ctx, tx, "waitlist.promoted", "animal", a.ID, actorID, events.EventPayload{
			"adopter": adopter.Name,
			"score":   entry.Score,
		}); err != nil {
			return queue.Entry{}, nil, err
		}
		if err := tx.Commit(); err != nil {
			return queue.Entry{}, nil, err
		}
		return entry, updated, nil
	}
}
