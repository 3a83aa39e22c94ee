package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"homeward/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const animalColumns = `id,entered_at,species,breed,name,sex,age_months,size,trait,temperament_json,status,reserved_by,reserved_until`

// InsertAnimalTx stores a freshly registered animal and its history.
func (r Repo) InsertAnimalTx(ctx context.Context, tx *sql.Tx, a *domain.Animal) error {
	temperament, err := marshalTags(a.Temperament)
	if err != nil {
		return err
	}
	var holder, until any
	if a.Reservation != nil {
		holder, until = a.Reservation.Holder, a.Reservation.Until
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO animals(`+animalColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, a.EnteredAt, a.Species, a.Breed, a.Name, a.Sex, a.AgeMonths, string(a.Size), a.Trait, temperament, string(a.Status), holder, until)
	if err != nil {
		return fmt.Errorf("insert animal: %w", err)
	}
	for _, e := range a.History {
		if err := r.AppendAnimalEventTx(ctx, tx, a.ID, e); err != nil {
			return err
		}
	}
	return nil
}

// UpdateAnimalTx persists the mutable animal fields and appends any
// history entries past fromEvent (the count already stored).
func (r Repo) UpdateAnimalTx(ctx context.Context, tx *sql.Tx, a *domain.Animal, fromEvent int) error {
	var holder, until any
	if a.Reservation != nil {
		holder, until = a.Reservation.Holder, a.Reservation.Until
	}
	res, err := tx.ExecContext(ctx, `UPDATE animals SET status=?, reserved_by=?, reserved_until=? WHERE id=?`,
		string(a.Status), holder, until, a.ID)
	if err != nil {
		return fmt.Errorf("update animal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if fromEvent < 0 || fromEvent > len(a.History) {
		fromEvent = len(a.History)
	}
	for _, e := range a.History[fromEvent:] {
		if err := r.AppendAnimalEventTx(ctx, tx, a.ID, e); err != nil {
			return err
		}
	}
	return nil
}

// AppendAnimalEventTx adds one history entry for an animal.
func (r Repo) AppendAnimalEventTx(ctx context.Context, tx *sql.Tx, animalID string, e domain.Event) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO animal_events(animal_id,kind,detail,ts) VALUES (?,?,?,?)`,
		animalID, e.Kind, e.Detail, e.TS)
	if err != nil {
		return fmt.Errorf("append animal event: %w", err)
	}
	return nil
}

// GetAnimal loads an animal with its full history.
func (r Repo) GetAnimal(ctx context.Context, id string) (*domain.Animal, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE id=?`, id)
	a, err := scanAnimal(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	events, err := r.ListAnimalEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	a.History = events
	return a, nil
}

// ListAnimals returns animals oldest entry first, optionally filtered
// by status. Rows that fail to scan are skipped rather than aborting
// the whole listing. Histories are not loaded here.
func (r Repo) ListAnimals(ctx context.Context, status string) ([]*domain.Animal, []error) {
	query := `SELECT ` + animalColumns + ` FROM animals`
	var args []any
	if status != "" {
		query += ` WHERE status=?`
		args = append(args, status)
	}
	query += ` ORDER BY entered_at ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, []error{err}
	}
	defer rows.Close()
	var animals []*domain.Animal
	var warnings []error
	for rows.Next() {
		a, err := scanAnimal(rows.Scan)
		if err != nil {
			warnings = append(warnings, fmt.Errorf("skipping animal row: %w", err))
			continue
		}
		animals = append(animals, a)
	}
	if err := rows.Err(); err != nil {
		warnings = append(warnings, err)
	}
	return animals, warnings
}

// ListAnimalEvents returns an animal's history in append order.
func (r Repo) ListAnimalEvents(ctx context.Context, animalID string) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT kind,detail,ts FROM animal_events WHERE animal_id=? ORDER BY id ASC`, animalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.Kind, &e.Detail, &e.TS); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// scanAnimal maps a row into an Animal. A reserved row missing its
// holder or deadline violates the reservation invariant, so it is
// corrected to available at the load boundary.
func scanAnimal(scan func(...any) error) (*domain.Animal, error) {
	var a domain.Animal
	var size, status string
	var temperament, holder, until sql.NullString
	if err := scan(&a.ID, &a.EnteredAt, &a.Species, &a.Breed, &a.Name, &a.Sex, &a.AgeMonths,
		&size, &a.Trait, &temperament, &status, &holder, &until); err != nil {
		return nil, err
	}
	sz, err := domain.ParseSize(size)
	if err != nil {
		return nil, fmt.Errorf("animal %s: %w", a.ID, err)
	}
	a.Size = sz
	st, err := domain.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("animal %s: %w", a.ID, err)
	}
	a.Status = st
	if temperament.Valid && temperament.String != "" {
		if err := json.Unmarshal([]byte(temperament.String), &a.Temperament); err != nil {
			return nil, fmt.Errorf("animal %s: temperament: %w", a.ID, err)
		}
	}
	switch {
	case a.Status == domain.StatusReserved && holder.Valid && until.Valid:
		a.Reservation = &domain.Reservation{Holder: holder.String, Until: until.String}
	case a.Status == domain.StatusReserved:
		a.Status = domain.StatusAvailable
		a.Reservation = nil
	default:
		a.Reservation = nil
	}
	return &a, nil
}

// InsertAdopterTx registers an adopter; the name is the identity key.
// Runs on the caller's transaction so the row and its audit event
// commit or roll back together.
func (r Repo) InsertAdopterTx(ctx context.Context, tx *sql.Tx, a domain.Adopter) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO adopters(name,age,housing,area_m2,experienced,has_children,has_other_pets,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.Name, a.Age, string(a.Housing), a.AreaM2, boolInt(a.Experienced), boolInt(a.HasChildren), boolInt(a.HasOtherPets), a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert adopter: %w", err)
	}
	return nil
}

// GetAdopter fetches an adopter by name.
func (r Repo) GetAdopter(ctx context.Context, name string) (domain.Adopter, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT name,age,housing,area_m2,experienced,has_children,has_other_pets,created_at FROM adopters WHERE name=?`, name)
	a, err := scanAdopter(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Adopter{}, ErrNotFound
	}
	return a, err
}

// ListAdopters returns adopters by registration order.
func (r Repo) ListAdopters(ctx context.Context) ([]domain.Adopter, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT name,age,housing,area_m2,experienced,has_children,has_other_pets,created_at FROM adopters ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var adopters []domain.Adopter
	for rows.Next() {
		a, err := scanAdopter(rows.Scan)
		if err != nil {
			return nil, err
		}
		adopters = append(adopters, a)
	}
	return adopters, rows.Err()
}

func scanAdopter(scan func(...any) error) (domain.Adopter, error) {
	var a domain.Adopter
	var housing string
	var experienced, children, pets int
	if err := scan(&a.Name, &a.Age, &housing, &a.AreaM2, &experienced, &children, &pets, &a.CreatedAt); err != nil {
		return domain.Adopter{}, err
	}
	a.Housing = domain.Housing(housing)
	a.Experienced = experienced != 0
	a.HasChildren = children != 0
	a.HasOtherPets = pets != 0
	return a, nil
}

func marshalTags(tags []string) (any, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
