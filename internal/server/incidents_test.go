package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	incidentdomain "github.com/retailops/incidentd/internal/incident/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIncidentService struct {
	incident *incidentdomain.Incident
	err      error

	lastCreate     *incidentdomain.CreateIncidentRequest
	lastList       *incidentdomain.ListIncidentsRequest
	lastTransition *incidentdomain.TransitionRequest
	lastActor      snowflake.ID
}

func (f *fakeIncidentService) Create(ctx context.Context, req incidentdomain.CreateIncidentRequest) (*incidentdomain.Incident, error) {
	f.lastCreate = &req
	return f.incident, f.err
}

func (f *fakeIncidentService) Get(ctx context.Context, id snowflake.ID) (*incidentdomain.Incident, error) {
	return f.incident, f.err
}

func (f *fakeIncidentService) GetByNumber(ctx context.Context, number string) (*incidentdomain.Incident, error) {
	return f.incident, f.err
}

func (f *fakeIncidentService) List(ctx context.Context, req incidentdomain.ListIncidentsRequest) ([]incidentdomain.Incident, error) {
	f.lastList = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.incident == nil {
		return nil, nil
	}
	return []incidentdomain.Incident{*f.incident}, nil
}

func (f *fakeIncidentService) Summary(ctx context.Context, storeID *snowflake.ID) (*incidentdomain.IncidentSummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &incidentdomain.IncidentSummary{
		Total:    1,
		ByStatus: map[incidentdomain.Status]int64{incidentdomain.StatusNew: 1},
		Overdue:  1,
	}, nil
}

func (f *fakeIncidentService) Transition(ctx context.Context, actor snowflake.ID, req incidentdomain.TransitionRequest) (*incidentdomain.Incident, error) {
	f.lastActor = actor
	f.lastTransition = &req
	return f.incident, f.err
}

func (f *fakeIncidentService) Assign(ctx context.Context, actor snowflake.ID, req incidentdomain.AssignRequest) (*incidentdomain.Incident, error) {
	f.lastActor = actor
	return f.incident, f.err
}

func (f *fakeIncidentService) AddComment(ctx context.Context, req incidentdomain.AddCommentRequest) (*incidentdomain.IncidentComment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &incidentdomain.IncidentComment{
		ID:          snowflake.ID(900),
		IncidentID:  req.IncidentID,
		UserID:      req.UserID,
		CommentText: req.CommentText,
		IsInternal:  req.IsInternal,
	}, nil
}

func (f *fakeIncidentService) History(ctx context.Context, incidentID snowflake.ID) ([]incidentdomain.IncidentHistory, error) {
	return nil, f.err
}

func (f *fakeIncidentService) ListComments(ctx context.Context, incidentID snowflake.ID) ([]incidentdomain.IncidentComment, error) {
	return nil, f.err
}

func (f *fakeIncidentService) MarkBreached(ctx context.Context, now time.Time, limit int) (int64, error) {
	return 0, f.err
}

func newTestServer(t *testing.T, svc incidentdomain.Service) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:      engine,
		incidentSvc: svc,
	}
	s.registerAPIRoutes()
	return s
}

func sampleIncident() *incidentdomain.Incident {
	created := time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	return &incidentdomain.Incident{
		ID:             snowflake.ID(42),
		IncidentNumber: "HEL001-2026-0001",
		Title:          "Freezer down in dairy",
		Description:    "Temperature alarm on freezer row 3",
		CategoryID:     snowflake.ID(10),
		Priority:       incidentdomain.PriorityHigh,
		Severity:       incidentdomain.SeverityMajor,
		Status:         incidentdomain.StatusNew,
		ReporterID:     snowflake.ID(77),
		Source:         "api",
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestCreateIncidentRequiresActorHeader(t *testing.T) {
	svc := &fakeIncidentService{incident: sampleIncident()}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodPost, "/api/incidents", gin.H{"title": "x"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, svc.lastCreate)
}

func TestCreateIncidentReturnsCreated(t *testing.T) {
	svc := &fakeIncidentService{incident: sampleIncident()}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodPost, "/api/incidents", gin.H{
		"title":       "Freezer down in dairy",
		"description": "Temperature alarm on freezer row 3",
		"category_id": "10",
		"priority":    "high",
		"severity":    "major",
		"store_id":    "5",
		"reporter_id": "77",
	}, map[string]string{HeaderActorID: "77"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			IncidentNumber string `json:"incident_number"`
			Overdue        bool   `json:"overdue"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "HEL001-2026-0001", resp.Data.IncidentNumber)
	assert.False(t, resp.Data.Overdue)

	require.NotNil(t, svc.lastCreate)
	assert.Equal(t, snowflake.ID(10), svc.lastCreate.CategoryID)
	require.NotNil(t, svc.lastCreate.StoreID)
	assert.Equal(t, snowflake.ID(5), *svc.lastCreate.StoreID)
}

func TestCreateIncidentValidationErrorsMapTo400(t *testing.T) {
	svc := &fakeIncidentService{err: incidentdomain.ValidationErrors{
		{Field: "title", Code: "too_short", Message: "title must be at least 5 characters"},
		{Field: "priority", Code: "invalid_priority", Message: "unknown priority"},
	}}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodPost, "/api/incidents", gin.H{
		"title":       "x",
		"description": "broken freezer in dairy",
		"category_id": "10",
		"priority":    "urgent",
		"severity":    "major",
		"reporter_id": "77",
	}, map[string]string{HeaderActorID: "77"})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error.Type)
	require.Len(t, resp.Error.Errors, 2)
	assert.Equal(t, "title", resp.Error.Errors[0].Field)
	assert.Equal(t, "invalid_priority", resp.Error.Errors[1].Code)
}

func TestGetIncidentNotFoundMapsTo404(t *testing.T) {
	svc := &fakeIncidentService{err: incidentdomain.ErrIncidentNotFound}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodGet, "/api/incidents/42", nil, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error.Type)
}

func TestTransitionConflictMapsTo409(t *testing.T) {
	svc := &fakeIncidentService{
		err: fmt.Errorf("%w: new -> closed", incidentdomain.ErrInvalidTransition),
	}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodPost, "/api/incidents/42/transition", gin.H{
		"to": "closed",
	}, map[string]string{HeaderActorID: "77"})

	require.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_transition", resp.Error.Type)
	assert.Equal(t, snowflake.ID(77), svc.lastActor)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	svc := &fakeIncidentService{incident: sampleIncident()}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodPost, "/api/incidents/42/transition", gin.H{
		"to": "reopened",
	}, map[string]string{HeaderActorID: "77"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.lastTransition)
}

func TestListIncidentsParsesOverdueFilter(t *testing.T) {
	overdue := sampleIncident()
	deadline := time.Now().Add(-2 * time.Hour)
	overdue.SLADeadline = &deadline

	svc := &fakeIncidentService{incident: overdue}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodGet, "/api/incidents?overdue=true&status=new&limit=10", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastList)
	assert.True(t, svc.lastList.OverdueOnly)
	require.NotNil(t, svc.lastList.Status)
	assert.Equal(t, incidentdomain.StatusNew, *svc.lastList.Status)
	assert.Equal(t, 10, svc.lastList.Limit)

	var resp struct {
		Data []struct {
			Overdue bool `json:"overdue"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.True(t, resp.Data[0].Overdue)
}

func TestListIncidentsRejectsUnknownStatus(t *testing.T) {
	svc := &fakeIncidentService{}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodGet, "/api/incidents?status=reopened", nil, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.lastList)
}

func TestAssignRejectsInvalidAssignee(t *testing.T) {
	svc := &fakeIncidentService{incident: sampleIncident()}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodPost, "/api/incidents/42/assign", gin.H{
		"assignee_id": "not-a-number",
	}, map[string]string{HeaderActorID: "77"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetIncidentSummary(t *testing.T) {
	svc := &fakeIncidentService{}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodGet, "/api/incident-summary?store_id=5", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Total    int64            `json:"total"`
			ByStatus map[string]int64 `json:"by_status"`
			Overdue  int64            `json:"overdue"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data.Total)
	assert.Equal(t, int64(1), resp.Data.ByStatus["new"])
	assert.Equal(t, int64(1), resp.Data.Overdue)
}

func TestAddCommentUsesActorAsAuthor(t *testing.T) {
	svc := &fakeIncidentService{}
	s := newTestServer(t, svc)

	rec := doJSON(t, s, http.MethodPost, "/api/incidents/42/comments", gin.H{
		"comment_text": "vendor called, tech arriving at noon",
	}, map[string]string{HeaderActorID: "77"})

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data struct {
			UserID      snowflake.ID `json:"user_id"`
			CommentText string       `json:"comment_text"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, snowflake.ID(77), resp.Data.UserID)
	assert.Equal(t, "vendor called, tech arriving at noon", resp.Data.CommentText)
}
