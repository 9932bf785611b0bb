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

// UserFilters captures listing filters for back-office user queries.
type UserFilters struct {
	IsActive *bool
	// Flag narrows the listing to accounts carrying the given role flag.
	Flag models.RoleBits
	// Query matches against email and name fields.
	Query string
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// UpdateProfileInput enumerates the user-editable profile attributes.
type UpdateProfileInput struct {
	FirstName *string
	LastName  *string
	Meta      []byte
}

// UserService covers the account administration surface: listing,
// activation, role grants and archival. Credential changes live in the auth
// package.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:           db,
		auditService: auditService,
	}, nil
}

// Get fetches a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	return &user, nil
}

// List returns paginated users, newest first.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	page, perPage := clampPagination(opts.Page, opts.PageSize)

	query := s.db.WithContext(ctx).Model(&models.User{})

	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if opts.Filters.Flag != 0 {
		query = query.Where("role_bits & ? > 0", int64(opts.Filters.Flag))
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"lower(email) LIKE ? OR lower(first_name) LIKE ? OR lower(last_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// UpdateProfile applies partial profile edits.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Meta != nil {
		updates["meta"] = input.Meta
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}

	return s.Get(ctx, id)
}

// SetActive toggles an account. Deactivation also revokes every live session
// so the change takes effect immediately, not at next token expiry.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) error {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.IsActive == active {
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", id).Update("is_active", active).Error; err != nil {
			return err
		}
		if !active {
			return tx.Where("user_id = ?", id).Delete(&models.UserSession{}).Error
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("user service: set active: %w", err)
	}

	action := "user.activate"
	if !active {
		action = "user.deactivate"
	}
	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Email:    user.Email,
		Action:   action,
		Resource: user.ID,
		Result:   "success",
	})

	return nil
}

// SetRoles replaces a user's role bits.
func (s *UserService) SetRoles(ctx context.Context, id string, roles models.RoleBits) (*models.User, error) {
	ctx = ensureContext(ctx)

	if roles <= 0 {
		return nil, apperrors.NewBadRequest("at least one role flag is required")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := user.Roles
	if err := s.db.WithContext(ctx).Model(user).Update("role_bits", roles).Error; err != nil {
		return nil, fmt.Errorf("user service: set roles: %w", err)
	}
	user.Roles = roles

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Email:    user.Email,
		Action:   "user.set_roles",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{
			"previous": previous.String(),
			"current":  roles.String(),
		},
	})

	return user, nil
}

// Archive removes an account while preserving its identity fields. The user
// row is deleted, which cascades to credentials and sessions; the archived
// copy keeps what audit needs and nothing secret.
func (s *UserService) Archive(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		archived := models.ArchivedUser{
			UserID:     user.ID,
			Email:      user.Email,
			FirstName:  user.FirstName,
			LastName:   user.LastName,
			Roles:      user.Roles,
			Meta:       user.Meta,
			ArchivedAt: tx.NowFunc(),
		}
		if err := tx.Create(&archived).Error; err != nil {
			return err
		}

		// Cascades do not fire on sqlite without foreign_keys, so remove the
		// dependents explicitly.
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.UserSession{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.TwoFactorCredential{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.User{}, "id = ?", user.ID).Error
	})
	if err != nil {
		return fmt.Errorf("user service: archive user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Email:    user.Email,
		Action:   "user.archive",
		Resource: user.ID,
		Result:   "success",
	})

	return nil
}
