package homewardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Homeward HTTP API client.
type Client struct {
	BaseURL    string
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Reservation pairs the holder with the hold deadline.
type Reservation struct {
	Holder string `json:"holder"`
	Until  string `json:"until"`
}

// Animal represents the API animal model (partial).
type Animal struct {
	ID          string       `json:"id"`
	EnteredAt   string       `json:"entered_at"`
	Species     string       `json:"species"`
	Breed       string       `json:"breed"`
	Name        string       `json:"name"`
	Sex         string       `json:"sex"`
	AgeMonths   int          `json:"age_months"`
	Size        string       `json:"size"`
	Trait       int          `json:"trait"`
	Temperament []string     `json:"temperament,omitempty"`
	Status      string       `json:"status"`
	Reservation *Reservation `json:"reservation,omitempty"`
}

// Adopter represents a registered adopter.
type Adopter struct {
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Housing      string `json:"housing"`
	AreaM2       int    `json:"area_m2"`
	Experienced  bool   `json:"experienced"`
	HasChildren  bool   `json:"has_children"`
	HasOtherPets bool   `json:"has_other_pets"`
}

// FeeAdjustment is one labeled delta on the base fee.
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

// Adoption is the outcome of a finalized adoption.
type Adoption struct {
	Animal   Animal       `json:"animal"`
	Fee      FeeBreakdown `json:"fee"`
	Contract string       `json:"contract"`
}

// WaitlistEntry is one adopter waiting on an animal.
type WaitlistEntry struct {
	Adopter    string `json:"adopter"`
	Score      int    `json:"score"`
	Arrival    int64  `json:"arrival"`
	EnqueuedAt string `json:"enqueued_at"`
}

// Promotion pairs the promoted entry with the freshly reserved animal.
type Promotion struct {
	Entry  WaitlistEntry `json:"entry"`
	Animal Animal        `json:"animal"`
}

// Screening is a policy check plus compatibility score.
type Screening struct {
	AnimalID string   `json:"animal_id"`
	Adopter  string   `json:"adopter"`
	Score    int      `json:"score"`
	Eligible bool     `json:"eligible"`
	Rules    []string `json:"rules,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// RegisterAnimal registers a dog or cat.
func (c *Client) RegisterAnimal(ctx context.Context, body map[string]any) (Animal, error) {
	var resp Animal
	err := c.do(ctx, http.MethodPost, "v0/animals", body, &resp)
	return resp, err
}

// Animal fetches an animal by id.
func (c *Client) Animal(ctx context.Context, id string) (Animal, error) {
	var resp Animal
	err := c.do(ctx, http.MethodGet, "v0/animals/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Animals lists animals, optionally filtered by status.
func (c *Client) Animals(ctx context.Context, status string) ([]Animal, error) {
	endpoint := "v0/animals"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Animal
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RegisterAdopter registers an adopter.
func (c *Client) RegisterAdopter(ctx context.Context, a Adopter) (Adopter, error) {
	var resp Adopter
	err := c.do(ctx, http.MethodPost, "v0/adopters", a, &resp)
	return resp, err
}

// Screen checks an adopter against an animal.
func (c *Client) Screen(ctx context.Context, adopter, animalID string) (Screening, error) {
	var resp Screening
	endpoint := fmt.Sprintf("v0/adopters/%s/screen/%s", url.PathEscape(adopter), url.PathEscape(animalID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Reserve places a hold on an animal for an adopter.
func (c *Client) Reserve(ctx context.Context, animalID, adopter string) (Animal, error) {
	var resp Animal
	endpoint := "v0/animals/" + url.PathEscape(animalID) + "/reserve"
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"adopter": adopter}, &resp)
	return resp, err
}

// Adopt finalizes an adoption for the reservation holder.
func (c *Client) Adopt(ctx context.Context, animalID, adopter string, specialNeeds bool) (Adoption, error) {
	var resp Adoption
	endpoint := "v0/animals/" + url.PathEscape(animalID) + "/adopt"
	body := map[string]any{"adopter": adopter, "special_needs": specialNeeds}
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Return takes an adopted animal back.
func (c *Client) Return(ctx context.Context, animalID, reason string, quarantine bool) (Animal, error) {
	var resp Animal
	endpoint := "v0/animals/" + url.PathEscape(animalID) + "/return"
	body := map[string]any{"reason": reason, "quarantine": quarantine}
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// JoinWaitlist enqueues an adopter on an animal's waiting list.
func (c *Client) JoinWaitlist(ctx context.Context, animalID, adopter string) (WaitlistEntry, error) {
	var resp WaitlistEntry
	endpoint := "v0/animals/" + url.PathEscape(animalID) + "/waitlist"
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"adopter": adopter}, &resp)
	return resp, err
}

// Waitlist lists an animal's waiting list in promotion order.
func (c *Client) Waitlist(ctx context.Context, animalID string) ([]WaitlistEntry, error) {
	var resp []WaitlistEntry
	endpoint := "v0/animals/" + url.PathEscape(animalID) + "/waitlist"
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Promote reserves a freed animal for the best waiting adopter.
func (c *Client) Promote(ctx context.Context, animalID string) (Promotion, error) {
	var resp Promotion
	endpoint := "v0/animals/" + url.PathEscape(animalID) + "/waitlist/promote"
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Sweep releases expired reservations, returning affected animal ids.
func (c *Client) Sweep(ctx context.Context) ([]string, error) {
	var resp struct {
		Expired []string `json:"expired"`
	}
	err := c.do(ctx, http.MethodPost, "v0/reservations/sweep", nil, &resp)
	return resp.Expired, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.ActorID != "" {
		req.Header.Set("X-Actor-ID", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
