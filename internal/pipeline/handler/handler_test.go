package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm_pipeline_backend/internal/pipeline/domain"
	"crm_pipeline_backend/internal/pipeline/repository"
	"crm_pipeline_backend/internal/pipeline/service"
	"crm_pipeline_backend/internal/pipeline/transport"
	"crm_pipeline_backend/platform/apperr"
	"crm_pipeline_backend/platform/httpkit"
	"crm_pipeline_backend/platform/validator"
)

type stubWriter struct {
	Writer

	transitionStage string
	transitionActor *uuid.UUID
	transitionErr   error

	convertErr error
	probability int
}

func (s *stubWriter) TransitionStage(_ context.Context, id uuid.UUID, stage string, actorID *uuid.UUID) (service.TransitionResult, error) {
	s.transitionStage = stage
	s.transitionActor = actorID
	if s.transitionErr != nil {
		return service.TransitionResult{}, s.transitionErr
	}
	return service.TransitionResult{
		Opportunity: repository.Opportunity{ID: id, Stage: domain.Stage(stage)},
		Message:     "moved",
	}, nil
}

func (s *stubWriter) ConvertToCustomer(_ context.Context, id uuid.UUID, _ *uuid.UUID) (service.ConversionResult, error) {
	if s.convertErr != nil {
		return service.ConversionResult{}, s.convertErr
	}
	return service.ConversionResult{OpportunityID: id, Message: "converted"}, nil
}

func (s *stubWriter) UpdateProbability(_ context.Context, id uuid.UUID, probability int) (repository.Opportunity, error) {
	s.probability = probability
	return repository.Opportunity{ID: id, Probability: probability}, nil
}

type stubReader struct {
	includeLost bool
}

func (s *stubReader) OpportunitiesByStage(_ context.Context, includeLost bool) ([]service.StageGroup, error) {
	s.includeLost = includeLost
	return service.GroupByStage(nil, includeLost), nil
}

func (s *stubReader) PipelineStats(context.Context) (service.Stats, error) {
	return service.ComputeStats([]repository.Opportunity{
		{Stage: domain.StageQuoteSent, Probability: 40, Value: 1000},
		{Stage: domain.StageQuoteSigned, Probability: 90, Value: 2000},
	}), nil
}

func newTestRouter(t *testing.T, w Writer, r Reader, userID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	val := validator.New()
	require.NoError(t, transport.RegisterValidations(val))
	h := New(w, r, val)

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Set(httpkit.ContextUserIDKey, userID)
		}
		c.Next()
	})
	engine.PATCH("/opportunities/:id/stage", h.TransitionStage)
	engine.PATCH("/opportunities/:id/probability", h.UpdateProbability)
	engine.POST("/opportunities/:id/convert", h.Convert)
	engine.GET("/pipeline/stages", h.ListByStage)
	engine.GET("/pipeline/stats", h.Stats)
	return engine
}

func do(engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Kind
}

func TestTransitionStagePassesActor(t *testing.T) {
	writer := &stubWriter{}
	user := uuid.New()
	engine := newTestRouter(t, writer, &stubReader{}, user)

	rec := do(engine, http.MethodPatch, "/opportunities/"+uuid.NewString()+"/stage", map[string]string{"stage": "negotiation"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "negotiation", writer.transitionStage)
	require.NotNil(t, writer.transitionActor)
	assert.Equal(t, user, *writer.transitionActor)
}

func TestTransitionStageRejectsUnknownStage(t *testing.T) {
	writer := &stubWriter{}
	engine := newTestRouter(t, writer, &stubReader{}, uuid.New())

	rec := do(engine, http.MethodPatch, "/opportunities/"+uuid.NewString()+"/stage", map[string]string{"stage": "won"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failure", errorKind(t, rec))
	assert.Empty(t, writer.transitionStage)
}

func TestTransitionStageRejectsBadID(t *testing.T) {
	engine := newTestRouter(t, &stubWriter{}, &stubReader{}, uuid.New())

	rec := do(engine, http.MethodPatch, "/opportunities/nope/stage", map[string]string{"stage": "lead"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_request", errorKind(t, rec))
}

func TestTransitionStageRequiresIdentity(t *testing.T) {
	engine := newTestRouter(t, &stubWriter{}, &stubReader{}, uuid.Nil)

	rec := do(engine, http.MethodPatch, "/opportunities/"+uuid.NewString()+"/stage", map[string]string{"stage": "lead"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorKind(t, rec))
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"not found", apperr.NotFound("opportunity not found"), http.StatusNotFound, "not_found"},
		{"write conflict", apperr.WriteConflict("conflict", nil), http.StatusConflict, "write_conflict"},
		{"transport", apperr.Transport("database unavailable", nil), http.StatusServiceUnavailable, "transport_failure"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestRouter(t, &stubWriter{transitionErr: tc.err}, &stubReader{}, uuid.New())

			rec := do(engine, http.MethodPatch, "/opportunities/"+uuid.NewString()+"/stage", map[string]string{"stage": "live"})

			require.Equal(t, tc.code, rec.Code)
			var body httpkit.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body.Kind)
		})
	}
}

func TestConvertPartialFailureIsConflict(t *testing.T) {
	partial := apperr.PartialSequence("account was updated but the deal stage was not; retry the conversion", nil).
		WithDetails(map[string]interface{}{"failedStep": "opportunity_stage"})
	engine := newTestRouter(t, &stubWriter{convertErr: partial}, &stubReader{}, uuid.New())

	rec := do(engine, http.MethodPost, "/opportunities/"+uuid.NewString()+"/convert", nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body httpkit.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "partial_sequence_failure", body.Kind)
	assert.Contains(t, body.Error, "retry the conversion")
}

func TestUpdateProbabilityValidatesRange(t *testing.T) {
	writer := &stubWriter{}
	engine := newTestRouter(t, writer, &stubReader{}, uuid.New())
	path := "/opportunities/" + uuid.NewString() + "/probability"

	rec := do(engine, http.MethodPatch, path, map[string]int{"probability": 120})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(engine, http.MethodPatch, path, map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(engine, http.MethodPatch, path, map[string]int{"probability": 0})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, writer.probability)
}

func TestListByStageIncludeLost(t *testing.T) {
	reader := &stubReader{}
	engine := newTestRouter(t, &stubWriter{}, reader, uuid.New())

	rec := do(engine, http.MethodGet, "/pipeline/stages?includeLost=true", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, reader.includeLost)

	var body struct {
		Stages []service.StageGroup `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Stages, len(domain.Stages()))
	for _, g := range body.Stages {
		assert.NotNil(t, g.Opportunities)
	}
}

func TestStats(t *testing.T) {
	engine := newTestRouter(t, &stubWriter{}, &stubReader{}, uuid.New())

	rec := do(engine, http.MethodGet, "/pipeline/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats service.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2200.0, stats.WeightedValue)
	assert.Equal(t, 1500.0, stats.AvgDealSize)
}
