package report_test

import (
	"context"
	"testing"
	"time"

	"homeward/internal/config"
	"homeward/internal/db"
	"homeward/internal/domain"
	"homeward/internal/engine"
	"homeward/internal/migrate"
	"homeward/internal/report"
	"homeward/internal/screening"
)

type fixture struct {
	Engine   engine.Engine
	Reporter report.Reporter
	Ctx      context.Context
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f := &fixture{Ctx: context.Background(), clock: &start}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return *f.clock }
	eng.Events.Now = eng.Now
	f.Engine = eng
	f.Reporter = report.New(eng.Repo, cfg)
	return f
}

func (f *fixture) adoptAfter(t *testing.T, spec domain.AnimalSpec, adopter string, wait time.Duration) {
	t.Helper()
	var a *domain.Animal
	var err error
	if spec.Breed == "" {
		spec.Breed = "mixed"
	}
	if spec.Sex == "" {
		spec.Sex = "f"
	}
	if spec.Size == "" {
		spec.Size = domain.SizeSmall
	}
	if spec.AgeMonths == 0 {
		spec.AgeMonths = 24
	}
	switch spec.Name {
	case "cat":
		a, err = f.Engine.RegisterCat(f.Ctx, spec, "tester")
	default:
		a, err = f.Engine.RegisterDog(f.Ctx, spec, "tester")
	}
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	*f.clock = f.clock.Add(wait)
	if _, err := f.Engine.Reserve(f.Ctx, a.ID, adopter, "tester"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.Engine.Adopt(f.Ctx, engine.AdoptOptions{AnimalID: a.ID, AdopterName: adopter, ActorID: "tester"}); err != nil {
		t.Fatalf("adopt: %v", err)
	}
}

func TestTopAdoptableRanksByScore(t *testing.T) {
	f := newFixture(t)
	if _, err := f.Engine.RegisterAdopter(f.Ctx, domain.Adopter{Name: "ana", Age: 30, Housing: domain.HousingApartment, AreaM2: 50}, "tester"); err != nil {
		t.Fatal(err)
	}
	// a large dog scores lower for an apartment adopter
	if _, err := f.Engine.RegisterDog(f.Ctx, domain.AnimalSpec{Name: "Big", Breed: "mixed", Sex: "m", AgeMonths: 30, Size: domain.SizeLarge}, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Engine.RegisterDog(f.Ctx, domain.AnimalSpec{Name: "Tiny", Breed: "mixed", Sex: "m", AgeMonths: 30, Size: domain.SizeSmall}, "tester"); err != nil {
		t.Fatal(err)
	}

	ranked, err := f.Reporter.TopAdoptable(f.Ctx, "ana", 10)
	if err != nil {
		t.Fatalf("top adoptable: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("len = %d, want 2", len(ranked))
	}
	if ranked[0].Animal.Name != "Tiny" {
		t.Fatalf("best = %s, want Tiny", ranked[0].Animal.Name)
	}
	if ranked[0].Score <= ranked[1].Score {
		t.Fatalf("scores %d, %d not descending", ranked[0].Score, ranked[1].Score)
	}

	limited, err := f.Reporter.TopAdoptable(f.Ctx, "ana", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored, got %d", len(limited))
	}
}

func TestTopAdoptableMeanScore(t *testing.T) {
	f := newFixture(t)
	// only "bob" passes the gate for a large dog
	if _, err := f.Engine.RegisterAdopter(f.Ctx, domain.Adopter{Name: "ana", Age: 30, Housing: domain.HousingApartment, AreaM2: 50}, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Engine.RegisterAdopter(f.Ctx, domain.Adopter{Name: "bob", Age: 40, Housing: domain.HousingHouse, AreaM2: 120}, "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Engine.RegisterDog(f.Ctx, domain.AnimalSpec{Name: "Big", Breed: "mixed", Sex: "m", AgeMonths: 30, Size: domain.SizeLarge}, "tester"); err != nil {
		t.Fatal(err)
	}

	ranked, err := f.Reporter.TopAdoptable(f.Ctx, "", 10)
	if err != nil {
		t.Fatalf("top adoptable: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("len = %d, want 1", len(ranked))
	}
	bob, _ := f.Engine.Repo.GetAdopter(f.Ctx, "bob")
	want := screening.New(f.Reporter.Config).Score(bob, ranked[0].Animal.Profile())
	if ranked[0].Score != want {
		t.Fatalf("mean score = %d, want bob's score %d", ranked[0].Score, want)
	}
}

func TestAdoptionsByGroup(t *testing.T) {
	f := newFixture(t)
	if _, err := f.Engine.RegisterAdopter(f.Ctx, domain.Adopter{Name: "ana", Age: 30, Housing: domain.HousingHouse, AreaM2: 100}, "tester"); err != nil {
		t.Fatal(err)
	}
	f.adoptAfter(t, domain.AnimalSpec{Name: "d1"}, "ana", time.Hour)
	f.adoptAfter(t, domain.AnimalSpec{Name: "d2"}, "ana", time.Hour)
	f.adoptAfter(t, domain.AnimalSpec{Name: "cat"}, "ana", time.Hour)

	bySpecies, err := f.Reporter.AdoptionsByGroup(f.Ctx, "species")
	if err != nil {
		t.Fatal(err)
	}
	if len(bySpecies) != 2 || bySpecies[0].Group != "dog" || bySpecies[0].Count != 2 {
		t.Fatalf("by species = %+v", bySpecies)
	}
	bySize, err := f.Reporter.AdoptionsByGroup(f.Ctx, "size")
	if err != nil {
		t.Fatal(err)
	}
	if len(bySize) != 1 || bySize[0].Group != "small" || bySize[0].Count != 3 {
		t.Fatalf("by size = %+v", bySize)
	}
}

func TestMeanTimeToAdoption(t *testing.T) {
	f := newFixture(t)
	if _, err := f.Engine.RegisterAdopter(f.Ctx, domain.Adopter{Name: "ana", Age: 30, Housing: domain.HousingHouse, AreaM2: 100}, "tester"); err != nil {
		t.Fatal(err)
	}
	f.adoptAfter(t, domain.AnimalSpec{Name: "quick"}, "ana", 24*time.Hour)
	f.adoptAfter(t, domain.AnimalSpec{Name: "slow"}, "ana", 72*time.Hour)

	mean, counted, err := f.Reporter.MeanTimeToAdoption(f.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counted != 2 {
		t.Fatalf("counted = %d, want 2", counted)
	}
	if mean != 48*time.Hour {
		t.Fatalf("mean = %s, want 48h", mean)
	}
}

func TestMeanTimeToAdoptionEmpty(t *testing.T) {
	f := newFixture(t)
	mean, counted, err := f.Reporter.MeanTimeToAdoption(f.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mean != 0 || counted != 0 {
		t.Fatalf("mean = %s counted = %d, want zeroes", mean, counted)
	}
}

func TestReturnsByReason(t *testing.T) {
	f := newFixture(t)
	if _, err := f.Engine.RegisterAdopter(f.Ctx, domain.Adopter{Name: "ana", Age: 30, Housing: domain.HousingHouse, AreaM2: 100}, "tester"); err != nil {
		t.Fatal(err)
	}
	names := []string{"r1", "r2", "r3"}
	reasons := []string{"allergies", "allergies", "moving"}
	for i, name := range names {
		f.adoptAfter(t, domain.AnimalSpec{Name: name}, "ana", time.Hour)
		a, _ := f.Reporter.Repo.ListAnimals(f.Ctx, string(domain.StatusAdopted))
		last := a[len(a)-1]
		if _, err := f.Engine.Return(f.Ctx, engine.ReturnOptions{AnimalID: last.ID, Reason: reasons[i], ActorID: "tester"}); err != nil {
			t.Fatalf("return %s: %v", name, err)
		}
		// move the animal back so the next adoption can proceed
		if _, err := f.Engine.Reassess(f.Ctx, last.ID, domain.StatusAvailable, "recheck ok", "tester"); err != nil {
			t.Fatal(err)
		}
	}
	byReason, err := f.Reporter.ReturnsByReason(f.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(byReason) != 2 || byReason[0].Group != "allergies" || byReason[0].Count != 2 {
		t.Fatalf("by reason = %+v", byReason)
	}
}
