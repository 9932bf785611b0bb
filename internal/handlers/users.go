package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// UserHandler exposes the account administration surface. Listing and
// moderation routes sit behind the staff tier; profile editing is self-serve.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type updateProfileRequest struct {
	FirstName *string        `json:"first_name" validate:"omitempty,max=200"`
	LastName  *string        `json:"last_name" validate:"omitempty,max=200"`
	Meta      map[string]any `json:"meta"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type setRolesRequest struct {
	RoleBits int64 `json:"role_bits" validate:"required,min=1"`
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	opts := services.ListUsersOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
		Filters: services.UserFilters{
			Query: strings.TrimSpace(c.Query("q")),
		},
	}

	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		active := parseBoolQuery(c, "active")
		opts.Filters.IsActive = &active
	}
	if flag := parseIntQuery(c, "flag", 0); flag > 0 {
		opts.Filters.Flag = models.RoleBits(flag)
	}

	users, total, err := h.users.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, response.NewPageMeta(opts.Page, opts.PageSize, total))
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.users.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}

// PUT /api/users/me
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	input := services.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.Meta != nil {
		encoded, err := json.Marshal(req.Meta)
		if err != nil {
			response.Error(c, errors.NewBadRequest("meta must be a JSON object"))
			return
		}
		input.Meta = encoded
	}

	updated, err := h.users.UpdateProfile(requestContext(c), user.ID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, updated)
}

// PUT /api/users/:id/active
func (h *UserHandler) SetActive(c *gin.Context) {
	var req setActiveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.SetActive(requestContext(c), c.Param("id"), *req.Active); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"active": *req.Active})
}

// PUT /api/users/:id/roles
func (h *UserHandler) SetRoles(c *gin.Context) {
	var req setRolesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	updated, err := h.users.SetRoles(requestContext(c), c.Param("id"), models.RoleBits(req.RoleBits))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, updated)
}

// DELETE /api/users/:id
func (h *UserHandler) Archive(c *gin.Context) {
	actor, ok := mustCurrentUser(c)
	if !ok {
		return
	}
	if actor.ID == c.Param("id") {
		response.Error(c, errors.NewBadRequest("cannot archive your own account"))
		return
	}

	if err := h.users.Archive(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"archived": true})
}
