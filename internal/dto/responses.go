package dto

import (
	"github.com/workhub/backend/internal/models"
)

// ErrorResponse — стандартный ответ об ошибке.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Pagination описывает страницу выборки.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// PaginatedProjectsResponse — страница каталога проектов.
type PaginatedProjectsResponse struct {
	Projects   []models.Project `json:"projects"`
	Pagination Pagination       `json:"pagination"`
}

// MilestoneStatusResponse возвращает этап после смены статуса вместе с
// пересчитанным прогрессом проекта.
type MilestoneStatusResponse struct {
	Milestone *models.Milestone `json:"milestone"`
	Progress  int               `json:"progress"`
}

// TokensResponse оборачивает выданную пару токенов.
type TokensResponse struct {
	User   *models.User `json:"user"`
	Tokens interface{}  `json:"tokens"`
}
