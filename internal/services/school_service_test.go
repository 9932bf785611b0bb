package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bodhgriha/marketplace/internal/database/testutil"
	"github.com/bodhgriha/marketplace/internal/models"
	apperrors "github.com/bodhgriha/marketplace/pkg/errors"
)

func setupSchoolService(t *testing.T) (*SchoolService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	svc, err := NewSchoolService(db, nil)
	require.NoError(t, err)
	return svc, db
}

func seedSchool(t *testing.T, svc *SchoolService, ownerID, name string) *models.YogaSchool {
	t.Helper()

	school, err := svc.Create(context.Background(), CreateSchoolInput{
		Name:     name,
		Location: "Rishikesh",
		OwnerID:  ownerID,
	})
	require.NoError(t, err)
	return school
}

func TestSchoolServiceCreate(t *testing.T) {
	svc, db := setupSchoolService(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleMember|models.RoleInstructor)

	school := seedSchool(t, svc, owner.ID, "Ganga Yoga Shala")
	require.Equal(t, "ganga-yoga-shala", school.Slug)
	require.True(t, school.IsActive)

	_, err := svc.Create(context.Background(), CreateSchoolInput{
		Name:    "GANGA yoga shala",
		OwnerID: owner.ID,
	})
	require.ErrorIs(t, err, ErrSchoolSlugTaken)
}

func TestSchoolServiceOwnershipGuard(t *testing.T) {
	svc, db := setupSchoolService(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleInstructor)
	stranger := seedUser(t, db, "stranger@example.com", models.RoleInstructor)
	school := seedSchool(t, svc, owner.ID, "Himalaya Institute")

	location := "Dharamshala"
	_, err := svc.Update(context.Background(), school.Slug, stranger.ID, UpdateSchoolInput{Location: &location})
	require.ErrorIs(t, err, ErrNotSchoolOwner)

	updated, err := svc.Update(context.Background(), school.Slug, owner.ID, UpdateSchoolInput{Location: &location})
	require.NoError(t, err)
	require.Equal(t, location, updated.Location)

	// An empty actor bypasses the check for staff callers.
	inactive := false
	updated, err = svc.Update(context.Background(), school.Slug, "", UpdateSchoolInput{IsActive: &inactive})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
}

func TestSchoolServiceListFilters(t *testing.T) {
	svc, db := setupSchoolService(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleInstructor)
	seedSchool(t, svc, owner.ID, "Ashtanga Centre")
	hidden := seedSchool(t, svc, owner.ID, "Closed Shala")

	inactive := false
	_, err := svc.Update(context.Background(), hidden.Slug, owner.ID, UpdateSchoolInput{IsActive: &inactive})
	require.NoError(t, err)

	_, total, err := svc.List(context.Background(), ListSchoolsOptions{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = svc.List(context.Background(), ListSchoolsOptions{IncludeInactive: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)

	_, total, err = svc.List(context.Background(), ListSchoolsOptions{Query: "ashtanga"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	_, total, err = svc.List(context.Background(), ListSchoolsOptions{OwnerID: owner.ID, IncludeInactive: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
}

func TestSchoolServiceCourses(t *testing.T) {
	svc, db := setupSchoolService(t)
	owner := seedUser(t, db, "owner@example.com", models.RoleInstructor)
	school := seedSchool(t, svc, owner.ID, "Course School")

	starts := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

	course, err := svc.AddCourse(context.Background(), school.Slug, owner.ID, CourseInput{
		Title:      "200h Teacher Training",
		StartsAt:   starts,
		EndsAt:     starts.AddDate(0, 1, 0),
		PriceCents: 12000000,
		Seats:      20,
	})
	require.NoError(t, err)
	require.Equal(t, "INR", course.Currency)

	// Invalid dates and negative prices are rejected.
	_, err = svc.AddCourse(context.Background(), school.Slug, owner.ID, CourseInput{
		Title:    "Backwards",
		StartsAt: starts,
		EndsAt:   starts.AddDate(0, 0, -1),
	})
	require.Error(t, err)

	_, err = svc.AddCourse(context.Background(), school.Slug, owner.ID, CourseInput{
		Title:      "Free money",
		StartsAt:   starts,
		EndsAt:     starts,
		PriceCents: -1,
	})
	require.Error(t, err)

	loaded, err := svc.Get(context.Background(), school.Slug)
	require.NoError(t, err)
	require.Len(t, loaded.Courses, 1)

	require.ErrorIs(t, svc.RemoveCourse(context.Background(), course.ID, "other-user"), ErrNotSchoolOwner)
	require.NoError(t, svc.RemoveCourse(context.Background(), course.ID, owner.ID))

	loaded, err = svc.Get(context.Background(), school.Slug)
	require.NoError(t, err)
	require.Empty(t, loaded.Courses)

	require.ErrorIs(t, svc.RemoveCourse(context.Background(), course.ID, owner.ID), apperrors.ErrNotFound)
}
