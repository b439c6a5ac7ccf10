package handler

import "github.com/synchub/backend/internal/interfaces/http/dto"

// APIResponse mirrors dto.Response with a typed Data field so the
// generated OpenAPI schema names the payload instead of showing a
// bare object.
// @Description Standard API response wrapper with typed data field
type APIResponse[T any] struct {
	Success bool           `json:"success"`
	Data    T              `json:"data,omitempty"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
	Meta    *dto.Meta      `json:"meta,omitempty"`
}

// ErrorResponse is the failure shape referenced by handler
// annotations.
// @Description Standard error response
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error,omitempty"`
}