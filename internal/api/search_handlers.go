package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/stagehand/internal/domain"
	"github.com/listenupapp/stagehand/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchWorks",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search works",
		Description: "Searches the local catalog and tops the page up from the external catalog, importing works it has not seen before",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearch)
}

// SearchInput contains parameters for a hybrid search.
type SearchInput struct {
	Term     string `query:"term" doc:"Search term. Empty lists local works only"`
	Mode     string `query:"mode" doc:"Field to match: title, contributor or tag (default title)"`
	Page     int    `query:"page" doc:"1-based page number"`
	PageSize int    `query:"page_size" doc:"Results per page (max 100)"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body *search.Response
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	p, err := GetPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	req := search.Request{
		Term:     input.Term,
		Mode:     domain.SearchMode(input.Mode),
		Page:     input.Page,
		PageSize: input.PageSize,
		UserID:   p.UserID,
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	res, err := s.services.Search.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: res}, nil
}
