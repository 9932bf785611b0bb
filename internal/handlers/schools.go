package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// SchoolHandler manages school listings and their courses. Registering a
// school requires the instructor flag; updates are owner-or-staff, enforced
// by the service.
type SchoolHandler struct {
	schools *services.SchoolService
}

func NewSchoolHandler(schools *services.SchoolService) *SchoolHandler {
	return &SchoolHandler{schools: schools}
}

type createSchoolRequest struct {
	Name        string `json:"name" validate:"required,max=300"`
	Description string `json:"description"`
	Location    string `json:"location" validate:"omitempty,max=300"`
	Website     string `json:"website" validate:"omitempty,max=500"`
}

type updateSchoolRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=300"`
	Description *string `json:"description"`
	Location    *string `json:"location" validate:"omitempty,max=300"`
	Website     *string `json:"website" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

type courseRequest struct {
	Title       string    `json:"title" validate:"required,max=300"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	PriceCents  int64     `json:"price_cents" validate:"min=0"`
	Currency    string    `json:"currency" validate:"omitempty,len=3"`
	Seats       int       `json:"seats" validate:"min=0"`
}

// GET /api/schools
func (h *SchoolHandler) List(c *gin.Context) {
	opts := services.ListSchoolsOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
		Query:    strings.TrimSpace(c.Query("q")),
		OwnerID:  strings.TrimSpace(c.Query("owner_id")),
	}

	if parseBoolQuery(c, "include_inactive") {
		user := middleware.CurrentUser(c)
		opts.IncludeInactive = user != nil && user.Roles.MeetsTier(models.RoleStaff)
	}

	schools, total, err := h.schools.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, schools, response.NewPageMeta(opts.Page, opts.PageSize, total))
}

// GET /api/schools/:slug
func (h *SchoolHandler) Get(c *gin.Context) {
	school, err := h.schools.Get(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, school)
}

// POST /api/schools
func (h *SchoolHandler) Create(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}
	if !user.Roles.HasFlag(models.RoleInstructor) {
		response.Error(c, errors.ErrForbidden)
		return
	}

	var req createSchoolRequest
	if !bindAndValidate(c, &req) {
		return
	}

	school, err := h.schools.Create(requestContext(c), services.CreateSchoolInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Website:     req.Website,
		OwnerID:     user.ID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, school)
}

// PUT /api/schools/:slug
func (h *SchoolHandler) Update(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req updateSchoolRequest
	if !bindAndValidate(c, &req) {
		return
	}

	school, err := h.schools.Update(requestContext(c), c.Param("slug"), actorID(user), services.UpdateSchoolInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Website:     req.Website,
		IsActive:    req.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, school)
}

// POST /api/schools/:slug/courses
func (h *SchoolHandler) AddCourse(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req courseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	course, err := h.schools.AddCourse(requestContext(c), c.Param("slug"), actorID(user), services.CourseInput{
		Title:       req.Title,
		Description: req.Description,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
		Seats:       req.Seats,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, course)
}

// DELETE /api/schools/courses/:id
func (h *SchoolHandler) RemoveCourse(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	if err := h.schools.RemoveCourse(requestContext(c), c.Param("id"), actorID(user)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// actorID returns the empty string for staff accounts, which bypasses the
// service's ownership check.
func actorID(user *models.User) string {
	if user.Roles.MeetsTier(models.RoleStaff) {
		return ""
	}
	return user.ID
}
