package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/models"
	"github.com/bodhgriha/marketplace/internal/services"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// BlogHandler serves markdown articles. Reading is public; writing sits
// behind the editor tier at the router.
type BlogHandler struct {
	blog *services.BlogService
}

func NewBlogHandler(blog *services.BlogService) *BlogHandler {
	return &BlogHandler{blog: blog}
}

type createPostRequest struct {
	Markdown string `json:"markdown" validate:"required"`
	Title    string `json:"title" validate:"omitempty,max=300"`
	Slug     string `json:"slug" validate:"omitempty,slug,max=200"`
	Publish  bool   `json:"publish"`
}

type updatePostRequest struct {
	Markdown *string `json:"markdown"`
	Title    *string `json:"title" validate:"omitempty,max=300"`
}

// GET /api/blog
func (h *BlogHandler) List(c *gin.Context) {
	opts := services.ListPostsOptions{
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "page_size", 50),
		Query:    strings.TrimSpace(c.Query("q")),
	}

	// Only editors may browse unpublished drafts.
	if parseBoolQuery(c, "drafts") {
		user, ok := mustCurrentUser(c)
		if !ok {
			return
		}
		opts.IncludeDrafts = user.Roles.MeetsTier(models.RoleEditor)
	}

	posts, total, err := h.blog.List(requestContext(c), opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, posts, response.NewPageMeta(opts.Page, opts.PageSize, total))
}

// GET /api/blog/:slug
func (h *BlogHandler) Get(c *gin.Context) {
	post, err := h.blog.Get(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, post)
}

// POST /api/blog
func (h *BlogHandler) Create(c *gin.Context) {
	user, ok := mustCurrentUser(c)
	if !ok {
		return
	}

	var req createPostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.blog.Create(requestContext(c), services.CreatePostInput{
		Markdown: req.Markdown,
		Title:    req.Title,
		Slug:     req.Slug,
		AuthorID: user.ID,
		Publish:  req.Publish,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, post)
}

// PUT /api/blog/:slug
func (h *BlogHandler) Update(c *gin.Context) {
	var req updatePostRequest
	if !bindAndValidate(c, &req) {
		return
	}

	post, err := h.blog.Update(requestContext(c), c.Param("slug"), services.UpdatePostInput{
		Markdown: req.Markdown,
		Title:    req.Title,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, post)
}

// POST /api/blog/:slug/publish
func (h *BlogHandler) Publish(c *gin.Context) {
	post, err := h.blog.Publish(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, post)
}

// POST /api/blog/:slug/unpublish
func (h *BlogHandler) Unpublish(c *gin.Context) {
	post, err := h.blog.Unpublish(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, post)
}

// DELETE /api/blog/:slug
func (h *BlogHandler) Delete(c *gin.Context) {
	if err := h.blog.Delete(requestContext(c), c.Param("slug")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
