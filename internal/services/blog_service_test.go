package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/database/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
)

func setupBlogService(t *testing.T) (*BlogService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewBlogService(db, nil)
	require.NoError(t, err)
	return svc, db
}

const samplePost = `---
title: Morning Practice
tags: [pranayama, beginners]
---
# Start slow

Ten minutes of **breathing** before asana.

<script>alert("xss")</script>
`

func TestBlogServiceCreateRendersAndSanitises(t *testing.T) {
	svc, db := setupBlogService(t)
	author := seedUser(t, db, "author@example.com", models.RoleMember|models.RoleEditor)

	post, err := svc.Create(context.Background(), CreatePostInput{
		Markdown: samplePost,
		AuthorID: author.ID,
	})
	require.NoError(t, err)

	// Title and slug come from the front matter.
	require.Equal(t, "Morning Practice", post.Title)
	require.Equal(t, "morning-practice", post.Slug)

	require.Contains(t, post.BodyHTML, "<strong>breathing</strong>")
	require.NotContains(t, post.BodyHTML, "<script>")
	require.Contains(t, post.BodyText, "Ten minutes of breathing")
	require.Contains(t, string(post.Meta), "pranayama")

	// Unpublished by default.
	require.False(t, post.IsPublished)
	require.Nil(t, post.PublishedAt)
}

func TestBlogServiceSlugUniqueness(t *testing.T) {
	svc, _ := setupBlogService(t)

	_, err := svc.Create(context.Background(), CreatePostInput{
		Markdown: "# One", Title: "Sun Salutation",
	})
	require.NoError(t, err)

	// Case variants collapse to the same slug.
	_, err = svc.Create(context.Background(), CreatePostInput{
		Markdown: "# Two", Title: "SUN salutation",
	})
	require.ErrorIs(t, err, ErrSlugTaken)
}

func TestBlogServicePublishLifecycle(t *testing.T) {
	svc, _ := setupBlogService(t)

	post, err := svc.Create(context.Background(), CreatePostInput{
		Markdown: "body", Title: "Drafted",
	})
	require.NoError(t, err)

	published, err := svc.Publish(context.Background(), post.Slug)
	require.NoError(t, err)
	require.True(t, published.IsPublished)
	require.NotNil(t, published.PublishedAt)
	firstPublication := *published.PublishedAt

	unpublished, err := svc.Unpublish(context.Background(), post.Slug)
	require.NoError(t, err)
	require.False(t, unpublished.IsPublished)

	// Republishing keeps the original publication time.
	republished, err := svc.Publish(context.Background(), post.Slug)
	require.NoError(t, err)
	require.True(t, republished.PublishedAt.Equal(firstPublication))
}

func TestBlogServiceListAndSearch(t *testing.T) {
	svc, _ := setupBlogService(t)

	_, err := svc.Create(context.Background(), CreatePostInput{
		Markdown: "All about ujjayi breathing.", Title: "Breathwork", Publish: true,
	})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreatePostInput{
		Markdown: "Hidden draft.", Title: "Draft Notes",
	})
	require.NoError(t, err)

	posts, total, err := svc.List(context.Background(), ListPostsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "breathwork", posts[0].Slug)

	_, total, err = svc.List(context.Background(), ListPostsOptions{IncludeDrafts: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	_, total, err = svc.List(context.Background(), ListPostsOptions{Query: "ujjayi"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = svc.List(context.Background(), ListPostsOptions{Query: "handstand"})
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestBlogServiceUpdateReRenders(t *testing.T) {
	svc, _ := setupBlogService(t)

	post, err := svc.Create(context.Background(), CreatePostInput{
		Markdown: "first", Title: "Evolving",
	})
	require.NoError(t, err)

	markdown := "now with *emphasis*"
	updated, err := svc.Update(context.Background(), post.Slug, UpdatePostInput{Markdown: &markdown})
	require.NoError(t, err)
	require.Contains(t, updated.BodyHTML, "<em>emphasis</em>")
	require.Equal(t, markdown, updated.BodyMD)
}

func TestSplitFrontMatter(t *testing.T) {
	body, meta, err := splitFrontMatter("---\ntitle: Hi\n---\ncontent")
	require.NoError(t, err)
	require.Equal(t, "content", body)
	require.Equal(t, "Hi", meta["title"])

	body, meta, err = splitFrontMatter("plain document")
	require.NoError(t, err)
	require.Equal(t, "plain document", body)
	require.Nil(t, meta)

	_, _, err = splitFrontMatter("---\ntitle: Broken\ncontent")
	require.Error(t, err)
}
