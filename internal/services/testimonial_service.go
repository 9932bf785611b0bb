package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
)

// SubmitTestimonialInput describes member feedback awaiting moderation.
type SubmitTestimonialInput struct {
	AuthorID string
	SchoolID string
	Rating   int
	Body     string
}

// ListTestimonialsOptions controls pagination for testimonial listings.
type ListTestimonialsOptions struct {
	Page     int
	PageSize int
	SchoolID string
	// IncludePending widens the listing beyond approved testimonials.
	IncludePending bool
}

// TestimonialService manages member feedback and its moderation queue. New
// submissions are hidden until a staff account approves them.
type TestimonialService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewTestimonialService constructs a TestimonialService instance.
func NewTestimonialService(db *gorm.DB, auditService *AuditService) (*TestimonialService, error) {
	if db == nil {
		return nil, errors.New("testimonial service: db is required")
	}
	return &TestimonialService{db: db, auditService: auditService}, nil
}

// Submit stores new feedback in the moderation queue.
func (s *TestimonialService) Submit(ctx context.Context, input SubmitTestimonialInput) (*models.Testimonial, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.AuthorID) == "" {
		return nil, apperrors.NewBadRequest("testimonial author is required")
	}
	if strings.TrimSpace(input.SchoolID) == "" {
		return nil, apperrors.NewBadRequest("testimonial school is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, apperrors.NewBadRequest("rating must be between 1 and 5")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, apperrors.NewBadRequest("testimonial body is required")
	}

	var school models.YogaSchool
	err := s.db.WithContext(ctx).Take(&school, "id = ?", input.SchoolID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testimonial service: load school: %w", err)
	}

	testimonial := &models.Testimonial{
		AuthorID: input.AuthorID,
		SchoolID: school.ID,
		Rating:   input.Rating,
		Body:     body,
	}

	if err := s.db.WithContext(ctx).Create(testimonial).Error; err != nil {
		return nil, fmt.Errorf("testimonial service: create testimonial: %w", err)
	}

	return testimonial, nil
}

// Approve makes a testimonial publicly visible, recording the moderator.
func (s *TestimonialService) Approve(ctx context.Context, id, approverID string) (*models.Testimonial, error) {
	ctx = ensureContext(ctx)

	testimonial, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if testimonial.IsApproved {
		return testimonial, nil
	}

	now := s.db.NowFunc()
	updates := map[string]any{
		"is_approved": true,
		"approved_at": now,
	}
	if approverID = strings.TrimSpace(approverID); approverID != "" {
		updates["approved_by"] = approverID
	}

	if err := s.db.WithContext(ctx).Model(testimonial).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("testimonial service: approve: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "testimonial.approve",
		Resource: testimonial.ID,
		Result:   "success",
		Metadata: map[string]any{"school_id": testimonial.SchoolID},
	})

	return s.get(ctx, id)
}

// Reject removes a testimonial from the moderation queue.
func (s *TestimonialService) Reject(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	testimonial, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&models.Testimonial{}, "id = ?", testimonial.ID).Error; err != nil {
		return fmt.Errorf("testimonial service: reject: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "testimonial.reject",
		Resource: testimonial.ID,
		Result:   "success",
		Metadata: map[string]any{"school_id": testimonial.SchoolID},
	})

	return nil
}

// List returns paginated testimonials, newest first. Without IncludePending
// only approved feedback is visible.
func (s *TestimonialService) List(ctx context.Context, opts ListTestimonialsOptions) ([]models.Testimonial, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := clampPagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.Testimonial{})
	if !opts.IncludePending {
		query = query.Where("is_approved = ?", true)
	}
	if opts.SchoolID != "" {
		query = query.Where("school_id = ?", opts.SchoolID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("testimonial service: count: %w", err)
	}

	var testimonials []models.Testimonial
	if err := query.
		Preload("Author").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&testimonials).Error; err != nil {
		return nil, 0, fmt.Errorf("testimonial service: list: %w", err)
	}

	return testimonials, total, nil
}

func (s *TestimonialService) get(ctx context.Context, id string) (*models.Testimonial, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewBadRequest("testimonial id is required")
	}

	var testimonial models.Testimonial
	err := s.db.WithContext(ctx).Take(&testimonial, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("testimonial service: load: %w", err)
	}

	return &testimonial, nil
}
