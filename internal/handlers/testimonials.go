package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/middleware"
	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// TestimonialHandler covers submission and the staff moderation queue.
type TestimonialHandler struct {
	testimonials *services.TestimonialService
}

func NewTestimonialHandler(testimonials *services.TestimonialService) *TestimonialHandler {
	return &TestimonialHandler{testimonials: testimonials}
}

type submitTestimonialRequest struct {
	SchoolID string `json:"school_id" validate:"required"`
	Rating   int    `json:"rating" validate:"required,min=1,max=5"`
	Body     string `json:"body" validate:"required,max=4000"`
}

// GET /api/testimonials
func (h *TestimonialHandler) List(c *gin.Context) {
	opts := services.ListTestimonialsOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
		SchoolID: strings.TrimSpace(c.Query("school_id")),
	}

	// The moderation queue is staff-only.
	if parseBoolQuery(c, "include_pending") {
		user := middleware.CurrentUser(c)
		opts.IncludePending = user != nil && user.Roles.MeetsTier(models.RoleStaff)
	}

	items, total, err := h.testimonials.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, response.NewPageMeta(opts.Page, opts.PageSize, total))
}

// POST /api/testimonials
func (h *TestimonialHandler) Submit(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req submitTestimonialRequest
	if !bindAndValidate(c, &req) {
		return
	}

	testimonial, err := h.testimonials.Submit(requestContext(c), services.SubmitTestimonialInput{
		AuthorID: user.ID,
		SchoolID: req.SchoolID,
		Rating:   req.Rating,
		Body:     req.Body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, testimonial)
}

// POST /api/testimonials/:id/approve
func (h *TestimonialHandler) Approve(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	testimonial, err := h.testimonials.Approve(requestContext(c), c.Param("id"), user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, testimonial)
}

// DELETE /api/testimonials/:id
func (h *TestimonialHandler) Reject(c *gin.Context) {
	if err := h.testimonials.Reject(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"rejected": true})
}
