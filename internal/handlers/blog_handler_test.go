package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bodhgriha/marketplace/internal/handlers/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
)

type postPayload struct {
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	BodyHTML    string `json:"body_html"`
	IsPublished bool   `json:"is_published"`
}

func TestBlogCreateRequiresEditorTier(t *testing.T) {
	env := testutil.NewEnv(t)
	_, memberToken := env.LoginUser(t, "member@bodhgriha.test", "password-123", models.RoleMember)

	rec := env.Request(t, http.MethodPost, "/api/blog", map[string]any{
		"markdown": "# Sunrise Flow\n\nBreathe.",
	}, memberToken)
	require.Equal(t, http.StatusForbidden, rec.Code)

	_, adminToken := env.LoginUser(t, "admin@bodhgriha.test", "password-123", models.RoleAdmin)
	rec = env.Request(t, http.MethodPost, "/api/blog", map[string]any{
		"markdown": "# Sunrise Flow\n\nBreathe.",
	}, adminToken)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestBlogPublishLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	_, editorToken := env.LoginUser(t, "editor@bodhgriha.test", "password-123", models.RoleEditor)

	rec := env.Request(t, http.MethodPost, "/api/blog", map[string]any{
		"markdown": "# Morning Practice\n\nStart with **pranayama**.",
	}, editorToken)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created postPayload
	testutil.DecodeData(t, rec, &created)
	require.Equal(t, "Morning Practice", created.Title)
	require.NotEmpty(t, created.Slug)
	require.Contains(t, created.BodyHTML, "<strong>pranayama</strong>")
	require.False(t, created.IsPublished)

	// Drafts stay out of the public listing.
	rec = env.Request(t, http.MethodGet, "/api/blog", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []postPayload
	testutil.DecodeData(t, rec, &listed)
	require.Empty(t, listed)

	rec = env.Request(t, http.MethodPost, "/api/blog/"+created.Slug+"/publish", nil, editorToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/blog", nil, "")
	testutil.DecodeData(t, rec, &listed)
	require.Len(t, listed, 1)
	require.Equal(t, created.Slug, listed[0].Slug)

	rec = env.Request(t, http.MethodGet, "/api/blog/"+created.Slug, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodPost, "/api/blog/"+created.Slug+"/unpublish", nil, editorToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/blog", nil, "")
	testutil.DecodeData(t, rec, &listed)
	require.Empty(t, listed)
}

func TestBlogDraftListingForEditors(t *testing.T) {
	env := testutil.NewEnv(t)
	_, editorToken := env.LoginUser(t, "drafts@bodhgriha.test", "password-123", models.RoleEditor)

	rec := env.Request(t, http.MethodPost, "/api/blog", map[string]any{
		"markdown": "# Hidden Draft",
	}, editorToken)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/blog?drafts=true", nil, editorToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []postPayload
	testutil.DecodeData(t, rec, &listed)
	require.Len(t, listed, 1)

	// A member asking for drafts gets only the published set.
	_, memberToken := env.LoginUser(t, "curious@bodhgriha.test", "password-123", models.RoleMember)
	rec = env.Request(t, http.MethodGet, "/api/blog?drafts=true", nil, memberToken)
	require.Equal(t, http.StatusOK, rec.Code)
	testutil.DecodeData(t, rec, &listed)
	require.Empty(t, listed)
}

func TestBlogUpdateAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	_, editorToken := env.LoginUser(t, "reviser@bodhgriha.test", "password-123", models.RoleEditor)

	rec := env.Request(t, http.MethodPost, "/api/blog", map[string]any{
		"markdown": "# First Cut",
		"publish":  true,
	}, editorToken)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created postPayload
	testutil.DecodeData(t, rec, &created)

	rec = env.Request(t, http.MethodPut, "/api/blog/"+created.Slug, map[string]any{
		"markdown": "# Second Cut\n\nRevised.",
		"title":    "Second Cut",
	}, editorToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated postPayload
	testutil.DecodeData(t, rec, &updated)
	require.Equal(t, "Second Cut", updated.Title)
	require.Contains(t, updated.BodyHTML, "Revised")

	rec = env.Request(t, http.MethodDelete, "/api/blog/"+created.Slug, nil, editorToken)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.Request(t, http.MethodGet, "/api/blog/"+created.Slug, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
