package handler

import (
	"context"

	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/internal/pipeline/transport"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/httpkit"
	"crm_pipeline_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Writer is the pipeline write path used by the handler.
type Writer interface {
	CreateAccount(ctx context.Context, name string, status string) (repository.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (repository.Account, error)
	CreateOpportunity(ctx context.Context, accountID uuid.UUID, title string, value float64, ownerID uuid.UUID) (repository.Opportunity, error)
	GetOpportunity(ctx context.Context, id uuid.UUID) (repository.Opportunity, error)
	TransitionStage(ctx context.Context, id uuid.UUID, stage string, actorID *uuid.UUID) (service.TransitionResult, error)
	UpdateProbability(ctx context.Context, id uuid.UUID, probability int) (repository.Opportunity, error)
	ConvertToCustomer(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) (service.ConversionResult, error)
	StageHistory(ctx context.Context, id uuid.UUID) ([]repository.StageHistoryEntry, error)
}

// Reader serves the aggregated pipeline views.
type Reader interface {
	OpportunitiesByStage(ctx context.Context, includeLost bool) ([]service.StageGroup, error)
	PipelineStats(ctx context.Context) (service.Stats, error)
}

// Handler handles HTTP requests for the sales pipeline.
type Handler struct {
	svc Writer
	agg Reader
	val *validator.Validator
}

const (
	msgInvalidRequest     = "invalid request"
	msgValidationFailed   = "validation failed"
	msgInvalidOpportunity = "invalid opportunity ID"
	msgInvalidAccount     = "invalid account ID"
)

// New creates a new pipeline handler.
func New(svc Writer, agg Reader, val *validator.Validator) *Handler {
	return &Handler{svc: svc, agg: agg, val: val}
}

// CreateAccount creates an account.
// POST /api/v1/accounts
func (h *Handler) CreateAccount(c *gin.Context) {
	var req transport.CreateAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.CreateAccount(c.Request.Context(), req.Name, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// GetAccount returns one account.
// GET /api/v1/accounts/:id
func (h *Handler) GetAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidAccount))
		return
	}

	result, err := h.svc.GetAccount(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateOpportunity opens a deal in the lead stage.
// POST /api/v1/opportunities
func (h *Handler) CreateOpportunity(c *gin.Context) {
	var req transport.CreateOpportunityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	ownerID := identity.UserID()
	if req.OwnerID != nil {
		ownerID = *req.OwnerID
	}

	result, err := h.svc.CreateOpportunity(c.Request.Context(), req.AccountID, req.Title, req.Value, ownerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.Created(c, result)
}

// GetOpportunity returns one opportunity.
// GET /api/v1/opportunities/:id
func (h *Handler) GetOpportunity(c *gin.Context) {
	id, ok := opportunityID(c)
	if !ok {
		return
	}

	result, err := h.svc.GetOpportunity(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// TransitionStage moves an opportunity to another stage.
// PATCH /api/v1/opportunities/:id/stage
func (h *Handler) TransitionStage(c *gin.Context) {
	id, ok := opportunityID(c)
	if !ok {
		return
	}
	var req transport.TransitionStageRequest
	if !h.bindJSON(c, &req) {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.TransitionStage(c.Request.Context(), id, req.Stage, identity.Actor())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpdateProbability overrides the probability of an opportunity.
// PATCH /api/v1/opportunities/:id/probability
func (h *Handler) UpdateProbability(c *gin.Context) {
	id, ok := opportunityID(c)
	if !ok {
		return
	}
	var req transport.UpdateProbabilityRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.svc.UpdateProbability(c.Request.Context(), id, *req.Probability)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Convert marks the account a customer and signs the deal.
// POST /api/v1/opportunities/:id/convert
func (h *Handler) Convert(c *gin.Context) {
	id, ok := opportunityID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ConvertToCustomer(c.Request.Context(), id, identity.Actor())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// History lists the stage changes of an opportunity.
// GET /api/v1/opportunities/:id/history
func (h *Handler) History(c *gin.Context) {
	id, ok := opportunityID(c)
	if !ok {
		return
	}

	result, err := h.svc.StageHistory(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": result})
}

// ListByStage returns the pipeline board.
// GET /api/v1/pipeline/stages
func (h *Handler) ListByStage(c *gin.Context) {
	var query transport.ListStagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return
	}

	result, err := h.agg.OpportunitiesByStage(c.Request.Context(), query.IncludeLost)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"stages": result})
}

// Stats returns pipeline totals.
// GET /api/v1/pipeline/stats
func (h *Handler) Stats(c *gin.Context) {
	result, err := h.agg.PipelineStats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest))
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(err.Error()))
		return false
	}
	return true
}

func opportunityID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidOpportunity))
		return uuid.UUID{}, false
	}
	return id, true
}
