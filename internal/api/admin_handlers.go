package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/stagehand/internal/domain"
	domainerrors "github.com/listenupapp/stagehand/internal/errors"
	"github.com/listenupapp/stagehand/internal/staging"
	"github.com/listenupapp/stagehand/internal/store"
)

func (s *Server) registerAdminRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "sweepProvisional",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/sweep",
		Summary:     "Sweep abandoned imports",
		Description: "Deletes provisional works and contributors older than the threshold that nothing depends on",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSweep)

	huma.Register(s.api, huma.Operation{
		OperationID: "listProvisional",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/provisional",
		Summary:     "List provisional rows",
		Description: "Lists provisional works and contributors, optionally only those older than a threshold",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListProvisional)
}

// SweepRequest is the request body for a sweep.
type SweepRequest struct {
	OlderThan string `json:"older_than,omitempty" doc:"Minimum age as a Go duration, e.g. 90m. Defaults to the configured sweep threshold"`
}

// SweepInput wraps the sweep request for Huma.
type SweepInput struct {
	Body SweepRequest `required:"false"`
}

// SweepOutput wraps the sweep result for Huma.
type SweepOutput struct {
	Body *staging.SweepResult
}

// ListProvisionalInput contains parameters for listing provisional rows.
type ListProvisionalInput struct {
	OlderThan string `query:"older_than" doc:"Minimum age as a Go duration. Empty lists every provisional row"`
	Kind      string `query:"kind" doc:"Only rows of this kind: work or contributor"`
}

// ListProvisionalResponse contains provisional rows.
type ListProvisionalResponse struct {
	Rows []store.ProvisionalRow `json:"rows" doc:"Provisional rows, works first"`
}

// ListProvisionalOutput wraps the listing for Huma.
type ListProvisionalOutput struct {
	Body ListProvisionalResponse
}

func (s *Server) handleSweep(ctx context.Context, input *SweepInput) (*SweepOutput, error) {
	p, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	olderThan := s.opts.SweepThreshold
	if input.Body.OlderThan != "" {
		olderThan, err = parseAge(input.Body.OlderThan)
		if err != nil {
			return nil, err
		}
	}
	// Younger rows may belong to a session that is still deciding.
	if olderThan < s.services.Staging.TTL() {
		return nil, domainerrors.Validationf("older_than %s is shorter than the pending action lifetime %s",
			olderThan, s.services.Staging.TTL())
	}

	res, err := s.services.Staging.Sweep(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sweep requested", "user_id", p.UserID, "older_than", olderThan, "deleted", res.DeletedCount)
	return &SweepOutput{Body: res}, nil
}

func (s *Server) handleListProvisional(ctx context.Context, input *ListProvisionalInput) (*ListProvisionalOutput, error) {
	if _, err := RequireAdmin(ctx); err != nil {
		return nil, err
	}

	var kind domain.EntityKind
	if input.Kind != "" {
		var err error
		if kind, err = domain.ParseEntityKind(input.Kind); err != nil {
			return nil, domainerrors.ValidationWithDetails("invalid kind", map[string]string{
				"kind": "must be work or contributor",
			})
		}
	}

	var olderThan time.Duration
	if input.OlderThan != "" {
		var err error
		if olderThan, err = parseAge(input.OlderThan); err != nil {
			return nil, err
		}
	}

	rows, err := s.services.Staging.Provisional(ctx, olderThan)
	if err != nil {
		return nil, err
	}
	if kind != "" {
		rows = slices.DeleteFunc(rows, func(r store.ProvisionalRow) bool { return r.Kind != kind })
	}
	if rows == nil {
		rows = []store.ProvisionalRow{}
	}
	return &ListProvisionalOutput{Body: ListProvisionalResponse{Rows: rows}}, nil
}

func parseAge(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, domainerrors.ValidationWithDetails("invalid older_than", map[string]string{
			"older_than": "must be a non-negative duration such as 90m",
		})
	}
	return d, nil
}
