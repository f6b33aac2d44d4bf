package delivery

import (
	"errors"
	"net/http"

	authdomain "famcal-backend/internal/auth/domain"
	caldomain "famcal-backend/internal/calendar/domain"
	caldto "famcal-backend/internal/calendar/dto"
	"famcal-backend/internal/calendar/usecase"

	"github.com/gin-gonic/gin"
)

type CalendarHandler struct {
	calendarUsecase usecase.CalendarUsecase
}

func NewCalendarHandler(calendarUsecase usecase.CalendarUsecase) *CalendarHandler {
	return &CalendarHandler{calendarUsecase: calendarUsecase}
}

func currentUser(c *gin.Context) *authdomain.User {
	value, exists := c.Get("user")
	if !exists {
		return nil
	}
	user, ok := value.(*authdomain.User)
	if !ok {
		return nil
	}
	return user
}

// respondError maps domain errors to HTTP statuses. A stale assignment
// write gets a 409 carrying the winning row so the client can rebase
// without another round trip.
func respondError(c *gin.Context, err error) {
	var conflict *caldomain.ConcurrentModificationError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":            conflict.Error(),
			"expected_version": conflict.ExpectedVersion,
			"actual_version":   conflict.ActualVersion,
			"current":          conflict.Current,
		})
		return
	}

	var validation caldomain.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
		return
	}

	switch {
	case errors.Is(err, caldomain.ErrCalendarNotFound), errors.Is(err, caldomain.ErrEventNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, caldomain.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, caldomain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (h *CalendarHandler) CreateCalendar(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req caldto.CreateCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cal, err := h.calendarUsecase.CreateCalendar(user.ID, req.Name, req.FeedURL, req.Color)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, cal)
}

func (h *CalendarHandler) ListCalendars(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cals, err := h.calendarUsecase.ListCalendars(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cals)
}

func (h *CalendarHandler) GetCalendar(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	cal, err := h.calendarUsecase.GetCalendar(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, cal)
}

func (h *CalendarHandler) DeleteCalendar(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.calendarUsecase.DeleteCalendar(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "calendar deleted"})
}

func (h *CalendarHandler) AddMember(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req caldto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	member, err := h.calendarUsecase.AddMember(user.ID, c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, member)
}

func (h *CalendarHandler) ListMembers(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	members, err := h.calendarUsecase.ListMembers(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, members)
}

func (h *CalendarHandler) RemoveMember(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.calendarUsecase.RemoveMember(user.ID, c.Param("id"), c.Param("userId")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

func (h *CalendarHandler) SetKeepSupplemental(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req caldto.KeepSupplementalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.calendarUsecase.SetKeepSupplemental(user.ID, c.Param("id"), req.Keep); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "preference updated"})
}

func (h *CalendarHandler) ListEvents(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	events, err := h.calendarUsecase.ListEvents(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *CalendarHandler) GetEvent(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	event, err := h.calendarUsecase.GetEvent(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *CalendarHandler) ListSupplemental(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items, err := h.calendarUsecase.ListSupplemental(user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

func (h *CalendarHandler) Reconcile(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	// Any member may trigger a refresh; membership is checked through the
	// usual lookup path.
	if _, err := h.calendarUsecase.GetCalendar(user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.calendarUsecase.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReconcileAll refreshes every calendar. Exposed for operators and cron;
// the background loop calls the same usecase method.
func (h *CalendarHandler) ReconcileAll(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	results := h.calendarUsecase.ReconcileAll(c.Request.Context())
	c.JSON(http.StatusOK, results)
}

func (h *CalendarHandler) Assign(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req caldto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.calendarUsecase.Assign(c.Request.Context(), usecase.AssignRequest{
		EventID:         c.Param("id"),
		CallerID:        user.ID,
		AssigneeID:      req.AssigneeID,
		Skip:            req.Skip,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *CalendarHandler) CheckConflicts(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	candidateID := c.Query("candidate_id")
	if candidateID == "" {
		candidateID = user.ID
	}

	report, err := h.calendarUsecase.CheckConflicts(c.Request.Context(), c.Param("id"), candidateID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *CalendarHandler) RegenerateSupplemental(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	items, err := h.calendarUsecase.RegenerateSupplemental(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}
