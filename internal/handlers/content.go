package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bodhgriha/marketplace/internal/content"
	"github.com/bodhgriha/marketplace/pkg/errors"
	"github.com/bodhgriha/marketplace/pkg/response"
)

// ContentHandler serves the YAML-driven site chrome the frontend renders:
// navbar structure and the about page.
type ContentHandler struct {
	loader *content.Loader
}

func NewContentHandler(loader *content.Loader) *ContentHandler {
	return &ContentHandler{loader: loader}
}

// GET /api/content/navbar
func (h *ContentHandler) Navbar(c *gin.Context) {
	doc, err := h.loader.Navbar()
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, doc)
}

// GET /api/content/about
func (h *ContentHandler) About(c *gin.Context) {
	doc, err := h.loader.About()
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, doc)
}
