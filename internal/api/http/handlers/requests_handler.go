package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/devmatch/request-service/internal/api/dto"
	"github.com/devmatch/request-service/internal/auth"
	"github.com/devmatch/request-service/internal/domain"
	"github.com/devmatch/request-service/internal/service"
	"github.com/devmatch/request-service/internal/workflow"
	apperrors "github.com/devmatch/request-service/pkg/util"
)

// RequestsHandler manages help-request endpoints.
type RequestsHandler struct {
	service *service.RequestService
}

// NewRequestsHandler constructs the handler.
func NewRequestsHandler(requestService *service.RequestService) *RequestsHandler {
	return &RequestsHandler{service: requestService}
}

// Create POST /requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Role != domain.RoleClient {
		return apperrors.NewForbidden("client account required")
	}
	var req dto.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("title and description required", nil)
	}

	request, err := h.service.CreateRequest(c.Context(), principal.User.ID, service.RequestCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": requestSummary(request)})
}

// List GET /requests. Clients see their own requests; developers browse open
// ones.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	filter := parseListQuery(c)

	var (
		requests []domain.Request
		err      error
	)
	if principal.Role == domain.RoleClient {
		requests, err = h.service.ListClientRequests(c.Context(), principal.User.ID, filter)
	} else {
		requests, err = h.service.ListOpenRequests(c.Context(), filter)
	}
	if err != nil {
		return err
	}

	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, requestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.service.GetRequest(c.Context(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.service.ListHistory(c.Context(), principal.User, request.ID, 100, 0)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(request, history)})
}

// ChangeStatus POST /requests/:id/status.
func (h *RequestsHandler) ChangeStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Status) == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	var details map[string]any
	if strings.TrimSpace(req.Comment) != "" {
		details = map[string]any{"comment": strings.TrimSpace(req.Comment)}
	}

	request, err := h.service.ChangeStatus(c.Context(), c.Params("id"), req.Status, principal.Role, principal.User.ID, details)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestSummary(request)})
}

// Actions GET /requests/:id/actions. Read-only introspection used by UIs to
// render available action buttons.
func (h *RequestsHandler) Actions(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	rules, err := h.service.AvailableActions(c.Context(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ActionResponse, 0, len(rules))
	for _, rule := range rules {
		items = append(items, dto.ActionResponse{To: rule.To, Label: rule.Label, Variant: rule.Variant})
	}
	return c.JSON(fiber.Map{"data": items})
}

// History GET /requests/:id/history.
func (h *RequestsHandler) History(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	entries, err := h.service.ListHistory(c.Context(), principal.User, c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.HistoryEntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, historyEntry(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func parseListQuery(c *fiber.Ctx) service.RequestListFilter {
	filter := service.RequestListFilter{
		Limit:  20,
		Offset: 0,
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if status, ok := workflow.ParseStatus(part); ok {
				filter.Statuses = append(filter.Statuses, status)
			}
		}
	}
	if raw := c.Query("q"); raw != "" {
		filter.SearchTerm = &raw
	}
	if limit, err := strconv.Atoi(c.Query("limit", "20")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset", "0")); err == nil {
		filter.Offset = offset
	}
	return filter
}

func requestSummary(request *domain.Request) dto.RequestSummary {
	return dto.RequestSummary{
		ID:          request.ID,
		ExternalKey: request.ExternalKey,
		ClientID:    request.ClientID,
		DeveloperID: request.DeveloperID,
		Title:       request.Title,
		Status:      request.Status,
		StatusLabel: workflow.LabelOf(request.Status),
		Tags:        request.Tags,
		CreatedAt:   request.CreatedAt,
		UpdatedAt:   request.UpdatedAt,
	}
}

func requestDetail(request *domain.Request, history []domain.RequestHistory) dto.RequestDetailResponse {
	detail := dto.RequestDetailResponse{
		ID:                request.ID,
		ExternalKey:       request.ExternalKey,
		ClientID:          request.ClientID,
		DeveloperID:       request.DeveloperID,
		Title:             request.Title,
		Description:       request.Description,
		Status:            request.Status,
		StatusLabel:       workflow.LabelOf(request.Status),
		StatusDescription: workflow.DescriptionOf(request.Status),
		Tags:              request.Tags,
		CreatedAt:         request.CreatedAt,
		UpdatedAt:         request.UpdatedAt,
		QAStartedAt:       request.QAStartedAt,
		ReviewStartedAt:   request.ReviewStartedAt,
		CompletedAt:       request.CompletedAt,
	}
	for i := range history {
		detail.History = append(detail.History, historyEntry(&history[i]))
	}
	return detail
}

func historyEntry(entry *domain.RequestHistory) dto.HistoryEntryResponse {
	return dto.HistoryEntryResponse{
		ID:             entry.ID,
		ChangeType:     string(entry.ChangeType),
		PreviousStatus: entry.PreviousStatus,
		NewStatus:      entry.NewStatus,
		ChangedBy:      entry.ChangedBy,
		ChangedByRole:  entry.ChangedByRole,
		ChangedAt:      entry.ChangedAt,
		Details:        entry.Details,
	}
}
