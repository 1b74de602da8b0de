package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/devmatch/request-service/internal/api/dto"
	"github.com/devmatch/request-service/internal/auth"
	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/service"
	apperrors "github.com/devmatch/request-service/pkg/util"
)

// MatchesHandler manages developer application endpoints.
type MatchesHandler struct {
	service *service.MatchService
}

// NewMatchesHandler constructs the handler.
func NewMatchesHandler(matchService *service.MatchService) *MatchesHandler {
	return &MatchesHandler{service: matchService}
}

// Apply POST /requests/:id/matches.
func (h *MatchesHandler) Apply(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Role != domain.RoleDeveloper {
		return apperrors.NewForbidden("developer account required")
	}
	var req dto.ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	match, request, err := h.service.Apply(c.Context(), principal.User.ID, c.Params("id"), req.Pitch)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"match":   matchResponse(match),
		"request": requestSummary(request),
	}})
}

// List GET /requests/:id/matches.
func (h *MatchesHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Role != domain.RoleClient {
		return apperrors.NewForbidden("client account required")
	}
	matches, err := h.service.ListByRequest(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.MatchResponse, 0, len(matches))
	for i := range matches {
		items = append(items, matchResponse(&matches[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Approve POST /matches/:id/approve.
func (h *MatchesHandler) Approve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Role != domain.RoleClient {
		return apperrors.NewForbidden("client account required")
	}
	request, err := h.service.Approve(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

// Reject POST /matches/:id/reject.
func (h *MatchesHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Role != domain.RoleClient {
		return apperrors.NewForbidden("client account required")
	}
	request, err := h.service.Reject(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

// Abandon POST /requests/:id/abandon.
func (h *MatchesHandler) Abandon(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Role != domain.RoleDeveloper {
		return apperrors.NewForbidden("developer account required")
	}
	request, err := h.service.Abandon(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

func matchResponse(match *domain.Match) dto.MatchResponse {
	return dto.MatchResponse{
		ID:          match.ID,
		RequestID:   match.RequestID,
		DeveloperID: match.DeveloperID,
		Status:      match.Status,
		Pitch:       match.Pitch,
		CreatedAt:   match.CreatedAt,
		UpdatedAt:   match.UpdatedAt,
	}
}
