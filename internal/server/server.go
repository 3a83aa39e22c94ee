package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"homeward/internal/domain"
	"homeward/internal/engine"
	"homeward/internal/queue"
	"homeward/internal/report"
	"homeward/internal/repo"
	"homeward/internal/screening"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_transition"`
	Message string         `json:"message" example:"invalid status transition adopted -> reserved"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every failing response uses.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the shelter API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// schema errors are the caller's problem, not a policy outcome
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Homeward API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	reporter := report.New(cfg.Engine.Repo, cfg.Engine.Config)

	registerHealth(group)
	registerAnimals(group, cfg.Engine)
	registerAdopters(group, cfg.Engine)
	registerWaitlist(group, cfg.Engine)
	registerSweep(group, cfg.Engine)
	registerStats(group, reporter)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var te *domain.InvalidTransitionError
	if errors.As(err, &te) {
		allowed := make([]string, 0, len(te.Allowed))
		for _, s := range te.Allowed {
			allowed = append(allowed, string(s))
		}
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{
			"from":    string(te.From),
			"to":      string(te.To),
			"allowed": allowed,
		})
	}
	var pe *screening.PolicyNotMetError
	if errors.As(err, &pe) {
		return newAPIError(http.StatusUnprocessableEntity, "policy_not_met", err.Error(), map[string]any{"rules": pe.Rules})
	}
	var qe *queue.EmptyQueueError
	if errors.As(err, &qe) {
		return newAPIError(http.StatusNotFound, "queue_empty", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "reserved by"),
		strings.Contains(lowered, "expired"):
		return newAPIError(http.StatusConflict, "reservation_conflict", msg, nil)
	case strings.Contains(lowered, "unique constraint"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") ||
		strings.Contains(lowered, "must be") || strings.Contains(lowered, "cannot be") ||
		strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "policy_not_met"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func actorID(actor string) string {
	if actor == "" {
		return "api"
	}
	return actor
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAnimals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-animal",
		Method:        http.MethodPost,
		Path:          "/animals",
		Summary:       "Register an animal",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Actor string                `header:"X-Actor-ID"`
		Body  RegisterAnimalRequest `json:"body"`
	}) (*struct {
		Body AnimalResponse `json:"body"`
	}, error) {
		spec := domain.AnimalSpec{
			Breed:       input.Body.Breed,
			Name:        input.Body.Name,
			Sex:         input.Body.Sex,
			AgeMonths:   input.Body.AgeMonths,
			Size:        domain.Size(input.Body.Size),
			Trait:       input.Body.Trait,
			Temperament: input.Body.Temperament,
		}
		var a *domain.Animal
		var err error
		switch input.Body.Species {
		case domain.SpeciesDog:
			a, err = e.RegisterDog(ctx, spec, actorID(input.Actor))
		case domain.SpeciesCat:
			a, err = e.RegisterCat(ctx, spec, actorID(input.Actor))
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "species must be dog or cat", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AnimalResponse `json:"body"`
		}{Body: animalResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-animals",
		Method:      http.MethodGet,
		Path:        "/animals",
		Summary:     "List animals",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body []AnimalResponse `json:"body"`
	}, error) {
		if input.Status != "" {
			if _, err := domain.ParseStatus(input.Status); err != nil {
				return nil, handleError(err)
			}
		}
		animals, _ := e.Repo.ListAnimals(ctx, input.Status)
		return &struct {
			Body []AnimalResponse `json:"body"`
		}{Body: mapAnimals(animals)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-animal",
		Method:      http.MethodGet,
		Path:        "/animals/{id}",
		Summary:     "Get animal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body AnimalResponse `json:"body"`
	}, error) {
		a, err := e.Repo.GetAnimal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AnimalResponse `json:"body"`
		}{Body: animalResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "animal-history",
		Method:      http.MethodGet,
		Path:        "/animals/{id}/events",
		Summary:     "Animal history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		a, err := e.Repo.GetAnimal(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: a.History}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-animal-event",
		Method:      http.MethodPost,
		Path:        "/animals/{id}/events",
		Summary:     "Record vaccination or note",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string             `path:"id"`
		Actor string             `header:"X-Actor-ID"`
		Body  AnimalEventRequest `json:"body"`
	}) (*struct {
		Body AnimalResponse `json:"body"`
	}, error) {
		a, err := e.AddAnimalEvent(ctx, input.ID, input.Body.Kind, input.Body.Detail, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AnimalResponse `json:"body"`
		}{Body: animalResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reserve-animal",
		Method:      http.MethodPost,
		Path:        "/animals/{id}/reserve",
		Summary:     "Reserve an animal",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID    string         `path:"id"`
		Actor string         `header:"X-Actor-ID"`
		Body  ReserveRequest `json:"body"`
	}) (*struct {
		Body AnimalResponse `json:"body"`
	}, error) {
		a, err := e.Reserve(ctx, input.ID, input.Body.Adopter, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AnimalResponse `json:"body"`
		}{Body: animalResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "adopt-animal",
		Method:      http.MethodPost,
		Path:        "/animals/{id}/adopt",
		Summary:     "Finalize an adoption",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID    string       `path:"id"`
		Actor string       `header:"X-Actor-ID"`
		Body  AdoptRequest `json:"body"`
	}) (*struct {
		Body AdoptionResponse `json:"body"`
	}, error) {
		res, err := e.Adopt(ctx, engine.AdoptOptions{
			AnimalID:     input.ID,
			AdopterName:  input.Body.Adopter,
			SpecialNeeds: input.Body.SpecialNeeds,
			ActorID:      actorID(input.Actor),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AdoptionResponse `json:"body"`
		}{Body: AdoptionResponse{
			Animal:   animalResponse(res.Animal),
			Fee:      res.Fee,
			Contract: res.Contract,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "return-animal",
		Method:      http.MethodPost,
		Path:        "/animals/{id}/return",
		Summary:     "Take an adopted animal back",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID    string        `path:"id"`
		Actor string        `header:"X-Actor-ID"`
		Body  ReturnRequest `json:"body"`
	}) (*struct {
		Body AnimalResponse `json:"body"`
	}, error) {
		a, err := e.Return(ctx, engine.ReturnOptions{
			AnimalID:   input.ID,
			Reason:     input.Body.Reason,
			Quarantine: input.Body.Quarantine,
			ActorID:    actorID(input.Actor),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AnimalResponse `json:"body"`
		}{Body: animalResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reassess-animal",
		Method:      http.MethodPost,
		Path:        "/animals/{id}/reassess",
		Summary:     "Reassess a returned or quarantined animal",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID    string          `path:"id"`
		Actor string          `header:"X-Actor-ID"`
		Body  ReassessRequest `json:"body"`
	}) (*struct {
		Body AnimalResponse `json:"body"`
	}, error) {
		a, err := e.Reassess(ctx, input.ID, domain.Status(input.Body.Outcome), input.Body.Reason, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AnimalResponse `json:"body"`
		}{Body: animalResponse(a)}, nil
	})
}

func registerAdopters(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-adopter",
		Method:        http.MethodPost,
		Path:          "/adopters",
		Summary:       "Register an adopter",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Actor string                 `header:"X-Actor-ID"`
		Body  RegisterAdopterRequest `json:"body"`
	}) (*struct {
		Body domain.Adopter `json:"body"`
	}, error) {
		a, err := e.RegisterAdopter(ctx, domain.Adopter{
			Name:         input.Body.Name,
			Age:          input.Body.Age,
			Housing:      domain.Housing(input.Body.Housing),
			AreaM2:       input.Body.AreaM2,
			Experienced:  input.Body.Experienced,
			HasChildren:  input.Body.HasChildren,
			HasOtherPets: input.Body.HasOtherPets,
		}, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Adopter `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-adopters",
		Method:      http.MethodGet,
		Path:        "/adopters",
		Summary:     "List adopters",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Adopter `json:"body"`
	}, error) {
		adopters, err := e.Repo.ListAdopters(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Adopter `json:"body"`
		}{Body: adopters}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-adopter",
		Method:      http.MethodGet,
		Path:        "/adopters/{name}",
		Summary:     "Get adopter",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name string `path:"name"`
	}) (*struct {
		Body domain.Adopter `json:"body"`
	}, error) {
		a, err := e.Repo.GetAdopter(ctx, input.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Adopter `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "screen-adopter",
		Method:      http.MethodGet,
		Path:        "/adopters/{name}/screen/{animal_id}",
		Summary:     "Screen adopter against an animal",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Name     string `path:"name"`
		AnimalID string `path:"animal_id"`
		Actor    string `header:"X-Actor-ID"`
	}) (*struct {
		Body engine.ScreeningResult `json:"body"`
	}, error) {
		res, err := e.Screen(ctx, input.AnimalID, input.Name, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ScreeningResult `json:"body"`
		}{Body: res}, nil
	})
}

func registerWaitlist(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "join-waitlist",
		Method:        http.MethodPost,
		Path:          "/animals/{id}/waitlist",
		Summary:       "Join an animal's waiting list",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID    string              `path:"id"`
		Actor string              `header:"X-Actor-ID"`
		Body  JoinWaitlistRequest `json:"body"`
	}) (*struct {
		Body queue.Entry `json:"body"`
	}, error) {
		entry, err := e.JoinWaitlist(ctx, input.ID, input.Body.Adopter, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body queue.Entry `json:"body"`
		}{Body: entry}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "show-waitlist",
		Method:      http.MethodGet,
		Path:        "/animals/{id}/waitlist",
		Summary:     "Show the waiting list",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []queue.Entry `json:"body"`
	}, error) {
		entries, err := e.Waitlist(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if entries == nil {
			entries = []queue.Entry{}
		}
		return &struct {
			Body []queue.Entry `json:"body"`
		}{Body: entries}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "promote-waitlist",
		Method:      http.MethodPost,
		Path:        "/animals/{id}/waitlist/promote",
		Summary:     "Promote the best waiting adopter",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Actor string `header:"X-Actor-ID"`
	}) (*struct {
		Body PromotionResponse `json:"body"`
	}, error) {
		entry, a, err := e.PromoteNext(ctx, input.ID, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PromotionResponse `json:"body"`
		}{Body: PromotionResponse{Entry: entry, Animal: animalResponse(a)}}, nil
	})
}

func registerSweep(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "sweep-reservations",
		Method:      http.MethodPost,
		Path:        "/reservations/sweep",
		Summary:     "Release expired reservations",
	}, func(ctx context.Context, input *struct {
		Actor string `header:"X-Actor-ID"`
	}) (*struct {
		Body SweepResponse `json:"body"`
	}, error) {
		expired, err := e.SweepReservations(ctx, actorID(input.Actor))
		if err != nil {
			return nil, handleError(err)
		}
		if expired == nil {
			expired = []string{}
		}
		return &struct {
			Body SweepResponse `json:"body"`
		}{Body: SweepResponse{Expired: expired, Count: len(expired)}}, nil
	})
}

func registerStats(api huma.API, r report.Reporter) {
	huma.Register(api, huma.Operation{
		OperationID: "stats-top-adoptable",
		Method:      http.MethodGet,
		Path:        "/stats/top-adoptable",
		Summary:     "Available animals ranked by adopter compatibility",
		Description: "With ?adopter= the ranking uses that adopter's score; without it, the mean score over all eligible adopters.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Adopter string `query:"adopter"`
		Limit   int    `query:"limit" default:"10"`
	}) (*struct {
		Body []report.RankedAnimal `json:"body"`
	}, error) {
		ranked, err := r.TopAdoptable(ctx, input.Adopter, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []report.RankedAnimal `json:"body"`
		}{Body: ranked}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stats-adoptions",
		Method:      http.MethodGet,
		Path:        "/stats/adoptions",
		Summary:     "Adoptions grouped by species or size",
	}, func(ctx context.Context, input *struct {
		Group string `query:"group" enum:"species,size" default:"species"`
	}) (*struct {
		Body []report.GroupCount `json:"body"`
	}, error) {
		counts, err := r.AdoptionsByGroup(ctx, input.Group)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []report.GroupCount `json:"body"`
		}{Body: counts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stats-mean-time-to-adoption",
		Method:      http.MethodGet,
		Path:        "/stats/mean-time-to-adoption",
		Summary:     "Mean time from entry to adoption",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		mean, counted, err := r.MeanTimeToAdoption(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{
			"mean":    mean.String(),
			"counted": counted,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stats-returns",
		Method:      http.MethodGet,
		Path:        "/stats/returns",
		Summary:     "Returns grouped by reason",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []report.GroupCount `json:"body"`
	}, error) {
		counts, err := r.ReturnsByReason(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []report.GroupCount `json:"body"`
		}{Body: counts}, nil
	})
}

type auditEvent struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log tail",
	}, func(ctx context.Context, input *struct {
		Limit    int    `query:"limit" default:"50"`
		EntityID string `query:"entity_id"`
	}) (*struct {
		Body []auditEvent `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		query := `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events`
		args := []any{}
		if input.EntityID != "" {
			query += ` WHERE entity_id=?`
			args = append(args, input.EntityID)
		}
		query += ` ORDER BY id DESC LIMIT ?`
		args = append(args, limit)
		rows, err := e.DB.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, handleError(err)
		}
		defer rows.Close()
		out := []auditEvent{}
		for rows.Next() {
			var ev auditEvent
			var payload string
			if err := rows.Scan(&ev.ID, &ev.TS, &ev.Type, &ev.EntityKind, &ev.EntityID, &ev.ActorID, &payload); err != nil {
				return nil, handleError(err)
			}
			_ = json.Unmarshal([]byte(payload), &ev.Payload)
			out = append(out, ev)
		}
		if err := rows.Err(); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []auditEvent `json:"body"`
		}{Body: out}, nil
	})
}
