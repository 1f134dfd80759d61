package transport

import (
	"crm_pipeline_backend/internal/pipeline/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Validation tags registered by the pipeline module.
const (
	TagPipelineStage = "pipeline_stage"
	TagAccountStatus = "account_status"
)

// CreateAccountRequest contains data for creating an account.
type CreateAccountRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=200"`
	Status string `json:"status,omitempty" validate:"omitempty,account_status"`
}

// CreateOpportunityRequest contains data for opening a deal. OwnerID defaults
// to the caller.
type CreateOpportunityRequest struct {
	AccountID uuid.UUID  `json:"accountId" validate:"required"`
	Title     string     `json:"title" validate:"required,min=1,max=200"`
	Value     float64    `json:"value" validate:"gte=0"`
	OwnerID   *uuid.UUID `json:"ownerId,omitempty"`
}

// TransitionStageRequest moves an opportunity to another stage.
type TransitionStageRequest struct {
	Stage string `json:"stage" validate:"required,pipeline_stage"`
}

// UpdateProbabilityRequest overrides the probability of an opportunity.
type UpdateProbabilityRequest struct {
	Probability *int `json:"probability" validate:"required,min=0,max=100"`
}

// ListStagesQuery filters the grouped pipeline view.
type ListStagesQuery struct {
	IncludeLost bool `form:"includeLost"`
}

func validateStage(fl validator.FieldLevel) bool {
	return domain.IsKnownStage(fl.Field().String())
}

func validateAccountStatus(fl validator.FieldLevel) bool {
	return domain.IsKnownAccountStatus(fl.Field().String())
}

// Registrar is the subset of the validator used to add pipeline tags.
type Registrar interface {
	RegisterValidation(tag string, fn validator.Func) error
}

// RegisterValidations adds the pipeline tags to val.
func RegisterValidations(val Registrar) error {
	if err := val.RegisterValidation(TagPipelineStage, validateStage); err != nil {
		return err
	}
	return val.RegisterValidation(TagAccountStatus, validateAccountStatus)
}
