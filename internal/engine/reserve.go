package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"homeward/internal/domain"
	"homeward/internal/events"
)

// reservationExpired reports whether a reservation is past its
// deadline. A missing or unparsable deadline counts as expired, so a
// corrupt record can never hold an animal forever.
func reservationExpired(r *domain.Reservation, now time.Time) bool {
	if r == nil {
		return true
	}
	until, err := time.Parse(time.RFC3339, r.Until)
	if err != nil {
		return true
	}
	return !now.Before(until)
}

// Reserve places a hold on an available animal for an adopter. The
// hold lasts the configured number of hours. A stale hold found on
// the animal is released first, then the new one is attempted.
func (e Engine) Reserve(ctx context.Context, animalID, adopterName, actorID string) (*domain.Animal, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	a, err := e.reserveTx(ctx, tx, animalID, adopterName, actorID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (e Engine) reserveTx(ctx context.Context, tx *sql.Tx, animalID, adopterName, actorID string) (*domain.Animal, error) {
	if adopterName == "" {
		return nil, errors.New("adopter name is required")
	}
	a, err := e.Repo.GetAnimal(ctx, animalID)
	if err != nil {
		return nil, err
	}
	adopter, err := e.Repo.GetAdopter(ctx, adopterName)
	if err != nil {
		return nil, err
	}
	now := e.now()
	base := len(a.History)

	if a.Status == domain.StatusReserved && reservationExpired(a.Reservation, now) {
		a.AppendEvent(domain.EventReservationExpired, expiryDetail(a.Reservation), now)
		if err := a.ChangeStatus(domain.StatusAvailable, "reservation expired", now); err != nil {
			return nil, err
		}
		a.ClearReservation()
	}

	if err := e.screener().CheckPolicy(adopter, a.Size); err != nil {
		return nil, err
	}
	if err := a.ChangeStatus(domain.StatusReserved, "reserved for "+adopter.Name, now); err != nil {
		return nil, err
	}
	until := now.Add(time.Duration(e.Config.Reservation.Hours) * time.Hour)
	a.SetReservation(adopter.Name, until)
	a.AppendEvent(domain.EventReservation, fmt.Sprintf("held for %s until %s", adopter.Name, until.UTC().Format(time.RFC3339)), now)

	if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
		return nil, err
	}
	if err := e.Events.Append(ctx, tx, "reservation.created", "animal", a.ID, actorID, events.EventPayload{
		"adopter": adopter.Name,
		"until":   a.Reservation.Until,
	}); err != nil {
		return nil, err
	}
	return a, nil
}

// expireReservation releases a stale hold in its own transaction.
func (e Engine) expireReservation(ctx context.Context, a *domain.Animal, actorID string) error {
	now := e.now()
	base := len(a.History)
	a.AppendEvent(domain.EventReservationExpired, expiryDetail(a.Reservation), now)
	if err := a.ChangeStatus(domain.StatusAvailable, "reservation expired", now); err != nil {
		return err
	}
	a.ClearReservation()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateAnimalTx(ctx, tx, a, base); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "reservation.expired", "animal", a.ID, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

func expiryDetail(r *domain.Reservation) string {
	if r == nil {
		return "reservation record incomplete"
	}
	return fmt.Sprintf("hold for %s past deadline %s", r.Holder, r.Until)
}
