package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/database"
	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
)

var (
	// ErrSchoolSlugTaken indicates the school slug collides case-insensitively.
	ErrSchoolSlugTaken = apperrors.New("SCHOOL_SLUG_TAKEN", "A school with this name already exists", http.StatusConflict)
	// ErrNotSchoolOwner guards mutations to schools the caller does not own.
	ErrNotSchoolOwner = apperrors.New("SCHOOL_NOT_OWNER", "Only the school owner may do this", http.StatusForbidden)
)

// CreateSchoolInput describes a new school listing.
type CreateSchoolInput struct {
	Name        string
	Description string
	Location    string
	Website     string
	OwnerID     string
}

// UpdateSchoolInput enumerates mutable school attributes.
type UpdateSchoolInput struct {
	Name        *string
	Description *string
	Location    *string
	Website     *string
	IsActive    *bool
}

// CourseInput describes a dated training program.
type CourseInput struct {
	Title       string
	Description string
	StartsAt    time.Time
	EndsAt      time.Time
	PriceCents  int64
	Currency    string
	Seats       int
}

// ListSchoolsOptions controls pagination and filtering for school listings.
type ListSchoolsOptions struct {
	Page     int
	PageSize int
	// Query matches against name and location.
	Query string
	// IncludeInactive widens the listing beyond active schools.
	IncludeInactive bool
	OwnerID         string
}

// SchoolService manages school listings and their courses. Ownership checks
// live here; tier checks live in the authorization layer.
type SchoolService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewSchoolService constructs a SchoolService instance.
func NewSchoolService(db *gorm.DB, auditService *AuditService) (*SchoolService, error) {
	if db == nil {
		return nil, errors.New("school service: db is required")
	}
	return &SchoolService{db: db, auditService: auditService}, nil
}

// Create registers a new school owned by the given instructor account.
func (s *SchoolService) Create(ctx context.Context, input CreateSchoolInput) (*models.YogaSchool, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("school name is required")
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, apperrors.NewBadRequest("school owner is required")
	}

	school := &models.YogaSchool{
		Name:        name,
		Slug:        slug.Make(name),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Website:     strings.TrimSpace(input.Website),
		IsActive:    true,
		OwnerID:     ownerID,
	}

	if err := s.db.WithContext(ctx).Create(school).Error; err != nil {
		if database.IsUniqueConstraintError(err) {
			return nil, ErrSchoolSlugTaken
		}
		return nil, fmt.Errorf("school service: create school: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &school.OwnerID,
		Action:   "school.create",
		Resource: school.Slug,
		Result:   "success",
	})

	return school, nil
}

// Get fetches a school with its courses by slug or ID.
func (s *SchoolService) Get(ctx context.Context, slugOrID string) (*models.YogaSchool, error) {
	ctx = ensureContext(ctx)

	key := strings.TrimSpace(slugOrID)
	if key == "" {
		return nil, apperrors.NewBadRequest("school slug is required")
	}

	var school models.YogaSchool
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Preload("Courses", func(db *gorm.DB) *gorm.DB {
			return db.Order("starts_at ASC")
		}).
		Where("slug = ? OR id = ?", strings.ToLower(key), key).
		Take(&school).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("school service: load school: %w", err)
	}

	return &school, nil
}

// Update applies partial edits to a school the actor owns. Staff-tier
// callers pass an empty actorID to bypass the ownership check.
func (s *SchoolService) Update(ctx context.Context, slugOrID, actorID string, input UpdateSchoolInput) (*models.YogaSchool, error) {
	ctx = ensureContext(ctx)

	school, err := s.Get(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	if actorID != "" && school.OwnerID != actorID {
		return nil, ErrNotSchoolOwner
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("school name is required")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.Website != nil {
		updates["website"] = strings.TrimSpace(*input.Website)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return school, nil
	}

	if err := s.db.WithContext(ctx).Model(school).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("school service: update school: %w", err)
	}

	return s.Get(ctx, school.Slug)
}

// List returns paginated schools ordered by name.
func (s *SchoolService) List(ctx context.Context, opts ListSchoolsOptions) ([]models.YogaSchool, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := clampPagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.YogaSchool{})
	if !opts.IncludeInactive {
		query = query.Where("is_active = ?", true)
	}
	if opts.OwnerID != "" {
		query = query.Where("owner_id = ?", opts.OwnerID)
	}
	if q := strings.TrimSpace(opts.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("lower(name) LIKE ? OR lower(location) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("school service: count schools: %w", err)
	}

	var schools []models.YogaSchool
	if err := query.
		Order("name ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&schools).Error; err != nil {
		return nil, 0, fmt.Errorf("school service: list schools: %w", err)
	}

	return schools, total, nil
}

// AddCourse attaches a training program to a school the actor owns.
func (s *SchoolService) AddCourse(ctx context.Context, schoolSlugOrID, actorID string, input CourseInput) (*models.Course, error) {
	ctx = ensureContext(ctx)

	school, err := s.Get(ctx, schoolSlugOrID)
	if err != nil {
		return nil, err
	}
	if actorID != "" && school.OwnerID != actorID {
		return nil, ErrNotSchoolOwner
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewBadRequest("course title is required")
	}
	if input.EndsAt.Before(input.StartsAt) {
		return nil, apperrors.NewBadRequest("course cannot end before it starts")
	}
	if input.PriceCents < 0 {
		return nil, apperrors.NewBadRequest("course price cannot be negative")
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "INR"
	}

	course := &models.Course{
		SchoolID:    school.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
		PriceCents:  input.PriceCents,
		Currency:    currency,
		Seats:       input.Seats,
	}

	if err := s.db.WithContext(ctx).Create(course).Error; err != nil {
		return nil, fmt.Errorf("school service: add course: %w", err)
	}

	return course, nil
}

// RemoveCourse deletes a course from a school the actor owns.
func (s *SchoolService) RemoveCourse(ctx context.Context, courseID, actorID string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(courseID) == "" {
		return apperrors.NewBadRequest("course id is required")
	}

	var course models.Course
	err := s.db.WithContext(ctx).Preload("School").Take(&course, "id = ?", courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("school service: load course: %w", err)
	}
	if actorID != "" && course.School != nil && course.School.OwnerID != actorID {
		return ErrNotSchoolOwner
	}

	return s.db.WithContext(ctx).Delete(&models.Course{}, "id = ?", courseID).Error
}
