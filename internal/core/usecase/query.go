package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/casestar/casestar-client/internal/core/domain"
	"github.com/casestar/casestar-client/internal/core/ports"
)

const defaultSearchLimit = 5

type QueryUseCase struct {
	api          ports.BackendAPI
	defaultLimit int
}

func NewQueryUseCase(api ports.BackendAPI, defaultLimit int) *QueryUseCase {
	if defaultLimit <= 0 {
		defaultLimit = defaultSearchLimit
	}
	return &QueryUseCase{
		api:          api,
		defaultLimit: defaultLimit,
	}
}

func (uc *QueryUseCase) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if limit <= 0 {
		limit = uc.defaultLimit
	}

	results, err := uc.api.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return results, nil
}

func (uc *QueryUseCase) Health(ctx context.Context) (*domain.HealthStatus, error) {
	return uc.api.Health(ctx)
}

// Cases lists backend cases, keeping those whose title or id contains filter.
func (uc *QueryUseCase) Cases(ctx context.Context, filter string) (*domain.CaseList, error) {
	list, err := uc.api.ListCases(ctx)
	if err != nil {
		return nil, err
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return list, nil
	}

	filtered := make([]domain.Case, 0, len(list.Cases))
	for _, c := range list.Cases {
		if strings.Contains(strings.ToLower(c.Title), filter) || strings.Contains(strings.ToLower(c.ID), filter) {
			filtered = append(filtered, c)
		}
	}
	return &domain.CaseList{
		Cases:   filtered,
		Total:   len(filtered),
		Message: list.Message,
	}, nil
}
