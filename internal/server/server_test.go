package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"homeward/internal/config"
	"homeward/internal/db"
	"homeward/internal/engine"
	"homeward/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return start }
	e.Events.Now = e.Now
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func registerTestAnimal(t *testing.T, srv *testServer, size string) AnimalResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals", map[string]any{
		"species":    "dog",
		"name":       "Rex",
		"breed":      "mixed",
		"sex":        "m",
		"age_months": 24,
		"size":       size,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register animal status %d: %s", res.StatusCode, data)
	}
	var a AnimalResponse
	if err := json.Unmarshal(data, &a); err != nil {
		t.Fatalf("unmarshal animal: %v", err)
	}
	return a
}

func registerTestAdopter(t *testing.T, srv *testServer, name string, overrides map[string]any) {
	t.Helper()
	body := map[string]any{
		"name":    name,
		"age":     30,
		"housing": "house",
		"area_m2": 100,
	}
	for k, v := range overrides {
		body[k] = v
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/adopters", body)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register adopter status %d: %s", res.StatusCode, data)
	}
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, data)
	}
	return envelope.Error.Code
}

func TestReserveAndAdoptOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	a := registerTestAnimal(t, srv, "small")
	registerTestAdopter(t, srv, "ana", nil)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/reserve", map[string]any{"adopter": "ana"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reserve status %d: %s", res.StatusCode, data)
	}
	var reserved AnimalResponse
	if err := json.Unmarshal(data, &reserved); err != nil {
		t.Fatal(err)
	}
	if reserved.Status != "reserved" || reserved.Reservation == nil || reserved.Reservation.Holder != "ana" {
		t.Fatalf("reserved = %+v", reserved)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/adopt", map[string]any{"adopter": "ana"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("adopt status %d: %s", res.StatusCode, data)
	}
	var adoption AdoptionResponse
	if err := json.Unmarshal(data, &adoption); err != nil {
		t.Fatal(err)
	}
	if adoption.Animal.Status != "adopted" || adoption.Fee.Total != 100 {
		t.Fatalf("adoption = %+v", adoption)
	}
	if adoption.Contract == "" {
		t.Fatal("expected contract text")
	}
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	srv := newTestServer(t)
	a := registerTestAnimal(t, srv, "small")
	registerTestAdopter(t, srv, "ana", nil)
	registerTestAdopter(t, srv, "bruno", nil)

	if res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/reserve", map[string]any{"adopter": "ana"}); res.StatusCode != http.StatusOK {
		t.Fatalf("first reserve: %d %s", res.StatusCode, data)
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/reserve", map[string]any{"adopter": "bruno"})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("status %d, want 409: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "invalid_transition" {
		t.Fatalf("code = %s, want invalid_transition", code)
	}
}

func TestPolicyFailureIsUnprocessable(t *testing.T) {
	srv := newTestServer(t)
	a := registerTestAnimal(t, srv, "large")
	registerTestAdopter(t, srv, "flat", map[string]any{"housing": "apartment", "area_m2": 40})

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/reserve", map[string]any{"adopter": "flat"})
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "policy_not_met" {
		t.Fatalf("code = %s, want policy_not_met", code)
	}
}

func TestUnknownAnimalIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/animals/nope", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "not_found" {
		t.Fatalf("code = %s, want not_found", code)
	}
}

func TestPromoteEmptyWaitlist(t *testing.T) {
	srv := newTestServer(t)
	a := registerTestAnimal(t, srv, "small")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/waitlist/promote", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "queue_empty" {
		t.Fatalf("code = %s, want queue_empty", code)
	}
}

func TestWaitlistJoinAndPromote(t *testing.T) {
	srv := newTestServer(t)
	a := registerTestAnimal(t, srv, "small")
	registerTestAdopter(t, srv, "ana", map[string]any{"experienced": true})
	registerTestAdopter(t, srv, "bruno", nil)

	for _, name := range []string{"bruno", "ana"} {
		res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/waitlist", map[string]any{"adopter": name})
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("join %s: %d %s", name, res.StatusCode, data)
		}
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/animals/"+a.ID+"/waitlist", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("show waitlist: %d %s", res.StatusCode, data)
	}
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/waitlist/promote", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("promote: %d %s", res.StatusCode, data)
	}
	var promo PromotionResponse
	if err := json.Unmarshal(data, &promo); err != nil {
		t.Fatal(err)
	}
	if promo.Entry.Adopter != "ana" {
		t.Fatalf("promoted %s, want ana (higher score)", promo.Entry.Adopter)
	}
	if promo.Animal.Status != "reserved" {
		t.Fatalf("animal status = %s, want reserved", promo.Animal.Status)
	}
}

func TestSweepEndpoint(t *testing.T) {
	srv := newTestServer(t)
	a := registerTestAnimal(t, srv, "small")
	registerTestAdopter(t, srv, "ana", nil)
	if res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/animals/"+a.ID+"/reserve", map[string]any{"adopter": "ana"}); res.StatusCode != http.StatusOK {
		t.Fatalf("reserve: %d %s", res.StatusCode, data)
	}
	// nothing expired yet
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/reservations/sweep", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sweep: %d %s", res.StatusCode, data)
	}
	var sweep SweepResponse
	if err := json.Unmarshal(data, &sweep); err != nil {
		t.Fatal(err)
	}
	if sweep.Count != 0 {
		t.Fatalf("count = %d, want 0", sweep.Count)
	}
}
