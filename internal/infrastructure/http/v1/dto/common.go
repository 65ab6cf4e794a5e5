// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"foodcoop/internal/core/apperror"
	"foodcoop/internal/core/id"
)

// ListResponse wraps list results with pagination.
type ListResponse[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// MoneyResponse is a single amount rendered as a decimal string.
type MoneyResponse struct {
	OrderID string `json:"orderId"`
	Kind    string `json:"kind,omitempty"`
	Amount  string `json:"amount"`
}

func parseID(field, value string) (id.ID, error) {
	parsed, err := id.Parse(value)
	if err != nil || id.IsNil(parsed) {
		return id.ID{}, apperror.NewValidation("invalid id").
			WithDetail("field", field).
			WithDetail("value", value)
	}
	return parsed, nil
}

func parseIDs(field string, values []string) ([]id.ID, error) {
	out := make([]id.ID, 0, len(values))
	for _, v := range values {
		parsed, err := parseID(field, v)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}
