package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	incidentdomain "github.com/retailops/incidentd/internal/incident/domain"
)

type createIncidentRequest struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	CategoryID       string  `json:"category_id"`
	SubcategoryID    string  `json:"subcategory_id"`
	Priority         string  `json:"priority"`
	Severity         string  `json:"severity"`
	StoreID          string  `json:"store_id"`
	DepartmentID     string  `json:"department_id"`
	LocationDetails  *string `json:"location_details"`
	ReporterID       string  `json:"reporter_id"`
	CustomerAffected bool    `json:"customer_affected"`
	Source           string  `json:"source"`
}

// incidentView decorates the stored incident with the derived overdue
// flag so clients never have to recompute deadline math.
type incidentView struct {
	incidentdomain.Incident
	Overdue bool `json:"overdue"`
}

func newIncidentView(incident incidentdomain.Incident, now time.Time) incidentView {
	return incidentView{
		Incident: incident,
		Overdue:  incident.IsOverdue(now),
	}
}

func (s *Server) CreateIncident(c *gin.Context) {
	var req createIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	categoryID, err := parseOptionalSnowflakeID(req.CategoryID)
	if err != nil || categoryID == nil {
		AbortWithError(c, newValidationError("category_id", "invalid_category_id", "invalid category_id"))
		return
	}
	reporterID, err := parseOptionalSnowflakeID(req.ReporterID)
	if err != nil || reporterID == nil {
		AbortWithError(c, newValidationError("reporter_id", "invalid_reporter_id", "invalid reporter_id"))
		return
	}
	subcategoryID, err := parseOptionalSnowflakeID(req.SubcategoryID)
	if err != nil {
		AbortWithError(c, newValidationError("subcategory_id", "invalid_subcategory_id", "invalid subcategory_id"))
		return
	}
	storeID, err := parseOptionalSnowflakeID(req.StoreID)
	if err != nil {
		AbortWithError(c, newValidationError("store_id", "invalid_store_id", "invalid store_id"))
		return
	}
	departmentID, err := parseOptionalSnowflakeID(req.DepartmentID)
	if err != nil {
		AbortWithError(c, newValidationError("department_id", "invalid_department_id", "invalid department_id"))
		return
	}

	incident, err := s.incidentSvc.Create(c.Request.Context(), incidentdomain.CreateIncidentRequest{
		Title:            strings.TrimSpace(req.Title),
		Description:      strings.TrimSpace(req.Description),
		CategoryID:       *categoryID,
		SubcategoryID:    subcategoryID,
		Priority:         incidentdomain.Priority(strings.TrimSpace(req.Priority)),
		Severity:         incidentdomain.Severity(strings.TrimSpace(req.Severity)),
		StoreID:          storeID,
		DepartmentID:     departmentID,
		LocationDetails:  req.LocationDetails,
		ReporterID:       *reporterID,
		CustomerAffected: req.CustomerAffected,
		Source:           strings.TrimSpace(req.Source),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": newIncidentView(*incident, time.Now())})
}

func (s *Server) GetIncidentByID(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}

	incident, err := s.incidentSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newIncidentView(*incident, time.Now())})
}

func (s *Server) GetIncidentByNumber(c *gin.Context) {
	number := strings.TrimSpace(c.Param("number"))
	if number == "" {
		AbortWithError(c, newValidationError("number", "invalid_number", "invalid incident number"))
		return
	}

	incident, err := s.incidentSvc.GetByNumber(c.Request.Context(), number)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newIncidentView(*incident, time.Now())})
}

func (s *Server) GetIncidentSummary(c *gin.Context) {
	storeID, err := parseOptionalSnowflakeID(c.Query("store_id"))
	if err != nil {
		AbortWithError(c, newValidationError("store_id", "invalid_store_id", "invalid store_id"))
		return
	}

	summary, err := s.incidentSvc.Summary(c.Request.Context(), storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) ListIncidents(c *gin.Context) {
	var query struct {
		StoreID    string `form:"store_id"`
		Status     string `form:"status"`
		Priority   string `form:"priority"`
		AssignedTo string `form:"assigned_to"`
		Overdue    string `form:"overdue"`
		Limit      int    `form:"limit"`
		Offset     int    `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	storeID, err := parseOptionalSnowflakeID(query.StoreID)
	if err != nil {
		AbortWithError(c, newValidationError("store_id", "invalid_store_id", "invalid store_id"))
		return
	}
	assignedTo, err := parseOptionalSnowflakeID(query.AssignedTo)
	if err != nil {
		AbortWithError(c, newValidationError("assigned_to", "invalid_assigned_to", "invalid assigned_to"))
		return
	}
	overdue, err := parseOptionalBool(query.Overdue)
	if err != nil {
		AbortWithError(c, newValidationError("overdue", "invalid_overdue", "invalid overdue"))
		return
	}

	req := incidentdomain.ListIncidentsRequest{
		StoreID:    storeID,
		AssignedTo: assignedTo,
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	if overdue != nil {
		req.OverdueOnly = *overdue
	}
	if trimmed := strings.TrimSpace(query.Status); trimmed != "" {
		status := incidentdomain.Status(trimmed)
		if !status.Valid() {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		req.Status = &status
	}
	if trimmed := strings.TrimSpace(query.Priority); trimmed != "" {
		priority := incidentdomain.Priority(trimmed)
		if !priority.Valid() {
			AbortWithError(c, newValidationError("priority", "invalid_priority", "invalid priority"))
			return
		}
		req.Priority = &priority
	}

	incidents, err := s.incidentSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	now := time.Now()
	views := make([]incidentView, 0, len(incidents))
	for _, incident := range incidents {
		views = append(views, newIncidentView(incident, now))
	}

	c.JSON(http.StatusOK, gin.H{"data": views})
}

type transitionIncidentRequest struct {
	To              string  `json:"to"`
	Reason          *string `json:"reason"`
	ResolutionNotes *string `json:"resolution_notes"`
}

func (s *Server) TransitionIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req transitionIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	to := incidentdomain.Status(strings.TrimSpace(req.To))
	if !to.Valid() {
		AbortWithError(c, newValidationError("to", "invalid_status", "invalid target status"))
		return
	}

	incident, err := s.incidentSvc.Transition(c.Request.Context(), actor, incidentdomain.TransitionRequest{
		IncidentID:      id,
		To:              to,
		Reason:          req.Reason,
		ResolutionNotes: req.ResolutionNotes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newIncidentView(*incident, time.Now())})
}

type assignIncidentRequest struct {
	AssigneeID string  `json:"assignee_id"`
	Reason     *string `json:"reason"`
}

func (s *Server) AssignIncident(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req assignIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	assigneeID, err := parseOptionalSnowflakeID(req.AssigneeID)
	if err != nil || assigneeID == nil {
		AbortWithError(c, newValidationError("assignee_id", "invalid_assignee_id", "invalid assignee_id"))
		return
	}

	incident, err := s.incidentSvc.Assign(c.Request.Context(), actor, incidentdomain.AssignRequest{
		IncidentID: id,
		AssigneeID: *assigneeID,
		Reason:     req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newIncidentView(*incident, time.Now())})
}

type addCommentRequest struct {
	CommentText string `json:"comment_text"`
	IsInternal  bool   `json:"is_internal"`
}

func (s *Server) AddIncidentComment(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}
	actor, ok := actorID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req addCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	comment, err := s.incidentSvc.AddComment(c.Request.Context(), incidentdomain.AddCommentRequest{
		IncidentID:  id,
		UserID:      actor,
		CommentText: strings.TrimSpace(req.CommentText),
		IsInternal:  req.IsInternal,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": comment})
}

func (s *Server) ListIncidentHistory(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}

	history, err := s.incidentSvc.History(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

func (s *Server) ListIncidentComments(c *gin.Context) {
	id, ok := parseIncidentID(c)
	if !ok {
		return
	}

	comments, err := s.incidentSvc.ListComments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": comments})
}

func parseIncidentID(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid incident id"))
		return 0, false
	}
	return snowflake.ID(parsed), true
}
