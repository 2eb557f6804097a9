package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/staging"
)

func (s *Server) registerStagingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "prepareAction",
		Method:      http.MethodPost,
		Path:        "/api/v1/staging/prepare",
		Summary:     "Prepare a staged action",
		Description: "Resolves an external catalog key to a local work, importing it provisionally when new, and returns the pending action the caller must hand back to commit or roll back",
		Tags:        []string{"Staging"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handlePrepare)

	huma.Register(s.api, huma.Operation{
		OperationID: "commitAction",
		Method:      http.MethodPost,
		Path:        "/api/v1/staging/commit",
		Summary:     "Commit a staged action",
		Description: "Records the user action against the staged work and clears the pending action",
		Tags:        []string{"Staging"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCommit)

	huma.Register(s.api, huma.Operation{
		OperationID: "rollbackAction",
		Method:      http.MethodPost,
		Path:        "/api/v1/staging/rollback",
		Summary:     "Roll back a staged action",
		Description: "Deletes what Prepare imported unless something now depends on it",
		Tags:        []string{"Staging"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRollback)
}

// === DTOs ===

// PrepareRequest is the request body for Prepare.
type PrepareRequest struct {
	ExternalKey string              `json:"external_key" validate:"required,catalogkey" doc:"External catalog key, e.g. OL27448W"`
	Intent      domain.ActionIntent `json:"intent" validate:"required,oneof=rate review add_to_list" doc:"Action being staged: rate, review or add_to_list"`
}

// PrepareInput wraps the prepare request for Huma.
type PrepareInput struct {
	Body PrepareRequest
}

// PrepareOutput wraps the prepare result for Huma.
type PrepareOutput struct {
	Body *staging.PrepareResult
}

// CommitRequest is the request body for Commit.
type CommitRequest struct {
	PendingAction *domain.PendingAction `json:"pending_action" validate:"required" doc:"Pending action returned by prepare, unchanged"`
	Payload       domain.ActionPayload  `json:"payload" doc:"The user action to record"`
}

// CommitInput wraps the commit request for Huma.
type CommitInput struct {
	Body CommitRequest
}

// CommitOutput wraps the commit result for Huma.
type CommitOutput struct {
	Body *staging.CommitResult
}

// RollbackRequest is the request body for Rollback.
type RollbackRequest struct {
	PendingAction *domain.PendingAction `json:"pending_action" validate:"required" doc:"Pending action returned by prepare, unchanged"`
}

// RollbackInput wraps the rollback request for Huma.
type RollbackInput struct {
	Body RollbackRequest
}

// RollbackOutput wraps the rollback result for Huma.
type RollbackOutput struct {
	Body *staging.RollbackResult
}

// === Handlers ===

func (s *Server) handlePrepare(ctx context.Context, input *PrepareInput) (*PrepareOutput, error) {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	res, err := s.services.Staging.Prepare(ctx, staging.PrepareRequest{
		ExternalKey: input.Body.ExternalKey,
		UserID:      p.UserID,
		SessionID:   p.SessionID,
		Intent:      input.Body.Intent,
	})
	if err != nil {
		return nil, err
	}
	return &PrepareOutput{Body: res}, nil
}

func (s *Server) handleCommit(ctx context.Context, input *CommitInput) (*CommitOutput, error) {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	res, err := s.services.Staging.Commit(ctx, ownAction(p.SessionID, input.Body.PendingAction), input.Body.Payload)
	if err != nil {
		return nil, err
	}
	return &CommitOutput{Body: res}, nil
}

func (s *Server) handleRollback(ctx context.Context, input *RollbackInput) (*RollbackOutput, error) {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	res, err := s.services.Staging.Rollback(ctx, ownAction(p.SessionID, input.Body.PendingAction))
	if err != nil {
		return nil, err
	}
	return &RollbackOutput{Body: res}, nil
}

// ownAction scopes a client-held action to the caller's session, so a
// handle lifted from another session never matches.
func ownAction(sessionID string, held *domain.PendingAction) *domain.PendingAction {
	cp := *held
	cp.SessionID = sessionID
	return &cp
}
