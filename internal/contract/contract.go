// Package contract renders and stores plain-text adoption contracts.
package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"homeward/internal/domain"
)

// Render produces the contract text for a finalized adoption.
func Render(a *domain.Animal, adopter domain.Adopter, fee float64, now time.Time) string {
	var b strings.Builder
	b.WriteString("ADOPTION CONTRACT\n")
	b.WriteString("=================\n\n")
	fmt.Fprintf(&b, "Date: %s\n\n", now.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "Animal: %s (%s, %s)\n", a.Name, a.Species, a.Breed)
	fmt.Fprintf(&b, "  ID: %s\n", a.ID)
	fmt.Fprintf(&b, "  Age: %d months, size %s\n\n", a.AgeMonths, a.Size)
	fmt.Fprintf(&b, "Adopter: %s\n", adopter.Name)
	fmt.Fprintf(&b, "  Housing: %s, %dm²\n\n", adopter.Housing, adopter.AreaM2)
	fmt.Fprintf(&b, "Adoption fee: %.2f\n\n", fee)
	b.WriteString("The adopter agrees to provide adequate care, shelter and\n")
	b.WriteString("veterinary attention, and to notify the shelter before\n")
	b.WriteString("rehoming the animal.\n")
	return b.String()
}

// Save writes the contract under <workspace>/.homeward/contracts and
// returns the file path.
func Save(workspace string, a *domain.Animal, text string, now time.Time) (string, error) {
	dir := filepath.Join(workspace, ".homeward", "contracts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.txt", sanitize(a.Name), now.UTC().Format("20060102"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "contract"
	}
	return out
}
