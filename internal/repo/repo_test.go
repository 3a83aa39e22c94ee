package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"homeward/internal/db"
	"homeward/internal/domain"
	"homeward/internal/migrate"
	"homeward/internal/repo"
)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func insertDog(t *testing.T, r repo.Repo, name string) *domain.Animal {
	t.Helper()
	a, err := domain.NewDog(domain.AnimalSpec{
		Name: name, Breed: "mixed", Sex: "m", AgeMonths: 24, Size: domain.SizeSmall,
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("new dog: %v", err)
	}
	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.InsertAnimalTx(context.Background(), tx, a); err != nil {
		t.Fatalf("insert animal: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestInsertAdopterRidesCallerTx(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	adopter := domain.Adopter{
		Name: "ana", Age: 30, Housing: domain.HousingHouse, AreaM2: 100,
		CreatedAt: "2024-01-01T00:00:00Z",
	}

	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.InsertAdopterTx(ctx, tx, adopter); err != nil {
		t.Fatalf("insert adopter: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}
	// a rolled back registration must leave no row behind
	if _, err := r.GetAdopter(ctx, "ana"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("after rollback: err = %v, want ErrNotFound", err)
	}

	tx, err = r.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.InsertAdopterTx(ctx, tx, adopter); err != nil {
		t.Fatalf("re-insert adopter: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	got, err := r.GetAdopter(ctx, "ana")
	if err != nil {
		t.Fatalf("after commit: %v", err)
	}
	if got.Name != "ana" || got.AreaM2 != 100 {
		t.Fatalf("adopter = %+v", got)
	}
}

func TestScanCorrectsIncompleteHold(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	a := insertDog(t, r, "Rex")

	// a reserved row with no deadline is broken; loading it must yield
	// an available animal, never a phantom hold
	if _, err := r.DB.ExecContext(ctx, `UPDATE animals SET status='reserved', reserved_by=NULL, reserved_until=NULL WHERE id=?`, a.ID); err != nil {
		t.Fatalf("break row: %v", err)
	}
	got, err := r.GetAnimal(ctx, a.ID)
	if err != nil {
		t.Fatalf("get animal: %v", err)
	}
	if got.Status != domain.StatusAvailable || got.Reservation != nil {
		t.Fatalf("loaded = %s/%+v, want available with no hold", got.Status, got.Reservation)
	}

	// same correction on the list path; the row still matches the
	// stored reserved status so the sweep can find and repair it
	listed, warnings := r.ListAnimals(ctx, string(domain.StatusReserved))
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}
	if len(listed) != 1 || listed[0].Status != domain.StatusAvailable {
		t.Fatalf("listed = %+v, want the corrected row", listed)
	}

	// a hold with both fields present survives the round trip
	if _, err := r.DB.ExecContext(ctx, `UPDATE animals SET reserved_by='ana', reserved_until='2024-01-03T00:00:00Z' WHERE id=?`, a.ID); err != nil {
		t.Fatal(err)
	}
	got, err = r.GetAnimal(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.StatusReserved || got.Reservation == nil || got.Reservation.Holder != "ana" {
		t.Fatalf("loaded = %s/%+v, want the intact hold", got.Status, got.Reservation)
	}
}
