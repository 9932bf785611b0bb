package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/database"
	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
)

const frontMatterDelimiter = "---"

// ErrSlugTaken indicates the requested slug collides case-insensitively.
var ErrSlugTaken = apperrors.New("BLOG_SLUG_TAKEN", "A post with this slug already exists", http.StatusConflict)

// CreatePostInput describes a new markdown article.
type CreatePostInput struct {
	// Markdown is the raw document, optionally starting with a YAML
	// front-matter block.
	Markdown string
	// Slug overrides the slug derived from the title when set.
	Slug     string
	Title    string
	AuthorID string
	Publish  bool
}

// UpdatePostInput enumerates mutable post attributes.
type UpdatePostInput struct {
	Markdown *string
	Title    *string
}

// ListPostsOptions controls pagination for post listings.
type ListPostsOptions struct {
	Page     int
	PageSize int
	// IncludeDrafts widens the listing beyond published posts.
	IncludeDrafts bool
	// Query matches against title and the stripped text body.
	Query string
}

// BlogService manages markdown articles: rendering, sanitisation,
// front-matter extraction and the publish lifecycle.
type BlogService struct {
	db           *gorm.DB
	auditService *AuditService

	markdown  goldmark.Markdown
	sanitiser *bluemonday.Policy
	stripper  *bluemonday.Policy
}

// NewBlogService constructs a BlogService instance.
func NewBlogService(db *gorm.DB, auditService *AuditService) (*BlogService, error) {
	if db == nil {
		return nil, errors.New("blog service: db is required")
	}

	return &BlogService{
		db:           db,
		auditService: auditService,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		sanitiser: bluemonday.UGCPolicy(),
		stripper:  bluemonday.StrictPolicy(),
	}, nil
}

// Create renders, sanitises and stores a new post. The slug is derived from
// the title unless supplied, and must be unique case-insensitively.
func (s *BlogService) Create(ctx context.Context, input CreatePostInput) (*models.BlogPost, error) {
	ctx = ensureContext(ctx)

	doc, err := s.renderDocument(input.Markdown)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = doc.title
	}
	if title == "" {
		return nil, apperrors.NewBadRequest("post title is required")
	}

	postSlug := slug.Make(input.Slug)
	if postSlug == "" {
		postSlug = slug.Make(title)
	}
	if postSlug == "" {
		return nil, apperrors.NewBadRequest("post slug is required")
	}

	post := &models.BlogPost{
		Slug:     postSlug,
		Title:    title,
		BodyMD:   input.Markdown,
		BodyHTML: doc.html,
		BodyText: doc.text,
		Meta:     datatypes.JSON(doc.meta),
	}
	if id := strings.TrimSpace(input.AuthorID); id != "" {
		post.AuthorID = &id
	}
	if input.Publish {
		now := s.db.NowFunc()
		post.IsPublished = true
		post.PublishedAt = &now
	}

	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, ErrSlugTaken
		}
		return nil, fmt.Errorf("blog service: create post: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   post.AuthorID,
		Action:   "blog.create",
		Resource: post.Slug,
		Result:   "success",
	})

	return post, nil
}

// Update re-renders a post from new markdown or retitles it.
func (s *BlogService) Update(ctx context.Context, slugOrID string, input UpdatePostInput) (*models.BlogPost, error) {
	ctx = ensureContext(ctx)

	post, err := s.Get(ctx, slugOrID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Markdown != nil {
		doc, err := s.renderDocument(*input.Markdown)
		if err != nil {
			return nil, err
		}
		updates["body_md"] = *input.Markdown
		updates["body_html"] = doc.html
		updates["body_text"] = doc.text
		if doc.meta != nil {
			updates["meta"] = doc.meta
		}
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("post title is required")
		}
		updates["title"] = title
	}
	if len(updates) == 0 {
		return post, nil
	}

	if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("blog service: update post: %w", err)
	}

	return s.Get(ctx, post.Slug)
}

// Publish makes a post publicly visible, stamping the publication time once.
func (s *BlogService) Publish(ctx context.Context, slugOrID string) (*models.BlogPost, error) {
	return s.setPublished(ctx, slugOrID, true)
}

// Unpublish pulls a post back to draft. The original publication time is
// kept so republishing preserves ordering.
func (s *BlogService) Unpublish(ctx context.Context, slugOrID string) (*models.BlogPost, error) {
	return s.setPublished(ctx, slugOrID, false)
}

func (s *BlogService) setPublished(ctx context.Context, slugOrID string, published bool) (*models.BlogPost, error) {
	ctx = ensureContext(ctx)

	post, err := s.Get(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	if post.IsPublished == published {
		return post, nil
	}

	updates := map[string]any{"is_published": published}
	if published && post.PublishedAt == nil {
		updates["published_at"] = s.db.NowFunc()
	}

	if err := s.db.WithContext(ctx).Model(post).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("blog service: set published: %w", err)
	}

	return s.Get(ctx, post.Slug)
}

// Get fetches a post by slug (preferred) or ID.
func (s *BlogService) Get(ctx context.Context, slugOrID string) (*models.BlogPost, error) {
	ctx = ensureContext(ctx)

	key := strings.TrimSpace(slugOrID)
	if key == "" {
		return nil, apperrors.NewBadRequest("post slug is required")
	}

	var post models.BlogPost
	err := s.db.WithContext(ctx).
		Preload("Author").
		Where("slug = ? OR id = ?", strings.ToLower(key), key).
		Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blog service: load post: %w", err)
	}

	return &post, nil
}

// List returns paginated posts, published ones ordered by publication time.
func (s *BlogService) List(ctx context.Context, opts ListPostsOptions) ([]models.BlogPost, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := clampPagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.BlogPost{})
	if !opts.IncludeDrafts {
		query = query.Where("is_published = ?", true)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("lower(title) LIKE ? OR lower(body_text) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("blog service: count posts: %w", err)
	}

	var posts []models.BlogPost
	if err := query.
		Preload("Author").
		Order("published_at DESC, created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("blog service: list posts: %w", err)
	}

	return posts, total, nil
}

// Delete removes a post permanently.
func (s *BlogService) Delete(ctx context.Context, slugOrID string) error {
	ctx = ensureContext(ctx)

	post, err := s.Get(ctx, slugOrID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.BlogPost{}, "id = ?", post.ID).Error; err != nil {
		return fmt.Errorf("blog service: delete post: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "blog.delete",
		Resource: post.Slug,
		Result:   "success",
	})

	return nil
}

type renderedDocument struct {
	html  string
	text  string
	title string
	meta  []byte
}

// renderDocument splits off YAML front matter, renders the markdown and
// sanitises the result. The stripped text body feeds search.
func (s *BlogService) renderDocument(markdown string) (*renderedDocument, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, apperrors.NewBadRequest("post body is required")
	}

	body, frontMatter, err := splitFrontMatter(markdown)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(body), &buf); err != nil {
		return nil, fmt.Errorf("blog service: render markdown: %w", err)
	}

	sanitised := s.sanitiser.Sanitize(buf.String())
	text := strings.Join(strings.Fields(s.stripper.Sanitize(sanitised)), " ")

	doc := &renderedDocument{
		html: sanitised,
		text: text,
	}

	if len(frontMatter) > 0 {
		if title, ok := frontMatter["title"].(string); ok {
			doc.title = strings.TrimSpace(title)
		}
		encoded, err := json.Marshal(frontMatter)
		if err != nil {
			return nil, fmt.Errorf("blog service: encode front matter: %w", err)
		}
		doc.meta = encoded
	}

	return doc, nil
}

// splitFrontMatter peels a leading `---` delimited YAML block off a markdown
// document. A document without one passes through untouched.
func splitFrontMatter(markdown string) (string, map[string]any, error) {
	trimmed := strings.TrimLeft(markdown, "\n\r")
	if !strings.HasPrefix(trimmed, frontMatterDelimiter+"\n") &&
		!strings.HasPrefix(trimmed, frontMatterDelimiter+"\r\n") {
		return markdown, nil, nil
	}

	rest := trimmed[len(frontMatterDelimiter):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end < 0 {
		return "", nil, apperrors.NewBadRequest("unterminated front matter block")
	}

	block := rest[:end]
	body := rest[end+len("\n"+frontMatterDelimiter):]
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return "", nil, apperrors.NewBadRequest("invalid front matter: " + err.Error())
	}

	return body, meta, nil
}
