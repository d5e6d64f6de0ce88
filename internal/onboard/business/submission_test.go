package business

import (
	"context"
	"errors"
	"net/url"
	"os"
	"testing"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/apierrors"
	tracker "github.com/aisa-it/onboard/onboard.go/internal/onboard/audit-tracker"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/config"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/dao"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var bl *Business
var db *gorm.DB

func TestMain(m *testing.M) {
	webURL, _ := url.Parse("http://localhost:8080")
	dao.Config = &config.Config{WebURL: webURL}

	var err error
	db, err = gorm.Open(sqlite.Open("file:business?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&dao.Entity{},
		&dao.Geography{},
		&dao.FormDefinition{},
		&dao.DocumentRequirement{},
		&dao.Submission{},
		&dao.ReviewComment{},
		&dao.Attachment{},
		&dao.AuditRecord{},
	); err != nil {
		os.Exit(1)
	}

	auditTracker := tracker.NewAuditTracker(db)
	bl = NewBL(db, auditTracker, nil)

	code := m.Run()
	auditTracker.Close()
	os.Exit(code)
}

func createPublishedForm(t *testing.T) *dao.FormDefinition {
	t.Helper()

	// Scope every fixture to its own entity so published versions never
	// collide across tests.
	entity := dao.Entity{
		ID:   dao.GenUUID(),
		Key:  dao.GenSlug(),
		Name: "Test entity",
	}
	require.NoError(t, db.Create(&entity).Error)

	form := dao.FormDefinition{
		ID:          dao.GenUUID(),
		CreatedById: dao.GenUUID(),
		Slug:        dao.GenSlug(),
		Title:       "Supplier onboarding",
		Version:     1,
		Published:   true,
		EntityId:    uuid.NullUUID{UUID: entity.ID, Valid: true},
		Sections: types.SectionsSlice{
			{
				Key:   "tax",
				Label: "Tax details",
				Fields: []types.FormField{
					{
						Key:      "gst_number",
						Label:    "GSTIN",
						Type:     types.FieldInput,
						Required: true,
						Validate: &types.ValidationRule{Pattern: "^[0-9A-Z]{15}$"},
					},
					{
						Key:   "comment",
						Label: "Comment",
						Type:  types.FieldTextarea,
					},
				},
			},
		},
	}
	require.NoError(t, db.Create(&form).Error)
	return &form
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	form := createPublishedForm(t)
	orgId := dao.GenUUID()
	userId := dao.GenUUID()

	t.Run("invalid data is rejected before any write", func(t *testing.T) {
		draft, err := dao.CreateDraft(db, form, orgId, userId)
		require.NoError(t, err)

		_, err = dao.SaveDraft(db, draft.ID, 0, dao.DraftUpdate{
			Data: types.FormData{"gst_number": "bad"},
		})
		require.NoError(t, err)

		_, result, err := bl.Submit(ctx, draft.ID, orgId, userId, 2)
		assert.ErrorIs(t, err, apierrors.ErrSubmissionValidation)
		require.NotNil(t, result)
		assert.Contains(t, result.FieldErrors, "gst_number")

		var current dao.Submission
		require.NoError(t, db.Where("id = ?", draft.ID).First(&current).Error)
		assert.Equal(t, types.StatusDraft, current.Status)
		require.NoError(t, db.Delete(&current).Error)
	})

	t.Run("valid draft is submitted", func(t *testing.T) {
		draft, err := dao.CreateDraft(db, form, orgId, userId)
		require.NoError(t, err)

		saved, err := dao.SaveDraft(db, draft.ID, 0, dao.DraftUpdate{
			Data: types.FormData{"gst_number": "22AAAAA0000A1Z5"},
		})
		require.NoError(t, err)

		submitted, result, err := bl.Submit(ctx, draft.ID, orgId, userId, saved.Version)
		require.NoError(t, err)
		assert.Nil(t, result)
		assert.Equal(t, types.StatusSubmitted, submitted.Status)
		assert.Equal(t, saved.Version+1, submitted.Version)
		assert.NotNil(t, submitted.SubmittedAt)
	})

	t.Run("second active submission is rejected", func(t *testing.T) {
		draft, err := dao.CreateDraft(db, form, orgId, userId)
		require.NoError(t, err)

		saved, err := dao.SaveDraft(db, draft.ID, 0, dao.DraftUpdate{
			Data: types.FormData{"gst_number": "33BBBBB0000B1Z5"},
		})
		require.NoError(t, err)

		_, _, err = bl.Submit(ctx, draft.ID, orgId, userId, saved.Version)
		assert.ErrorIs(t, err, apierrors.ErrSubmissionActiveExists)
	})

	t.Run("a parallel draft blocks submit", func(t *testing.T) {
		freshOrg := dao.GenUUID()
		first, err := dao.CreateDraft(db, form, freshOrg, userId)
		require.NoError(t, err)
		_, err = dao.CreateDraft(db, form, freshOrg, userId)
		require.NoError(t, err)

		saved, err := dao.SaveDraft(db, first.ID, 0, dao.DraftUpdate{
			Data: types.FormData{"gst_number": "44CCCCC0000C1Z5"},
		})
		require.NoError(t, err)

		_, _, err = bl.Submit(ctx, first.ID, freshOrg, userId, saved.Version)
		assert.ErrorIs(t, err, apierrors.ErrSubmissionActiveExists)
	})

	t.Run("approved submission never reaches the versioned write", func(t *testing.T) {
		otherOrg := dao.GenUUID()
		draft, err := dao.CreateDraft(db, form, otherOrg, userId)
		require.NoError(t, err)
		require.NoError(t, db.Model(&dao.Submission{}).Where("id = ?", draft.ID).
			Update("status", types.StatusApproved).Error)

		_, _, err = bl.Submit(ctx, draft.ID, otherOrg, userId, draft.Version)
		var defined apierrors.DefinedError
		require.True(t, errors.As(err, &defined))
		assert.Equal(t, apierrors.ErrSubmissionBadTransition.Code, defined.Code)

		// Version untouched by the failed submit
		var current dao.Submission
		require.NoError(t, db.Where("id = ?", draft.ID).First(&current).Error)
		assert.Equal(t, draft.Version, current.Version)
	})

	t.Run("stale version yields conflict", func(t *testing.T) {
		otherOrg := dao.GenUUID()
		draft, err := dao.CreateDraft(db, form, otherOrg, userId)
		require.NoError(t, err)

		saved, err := dao.SaveDraft(db, draft.ID, 0, dao.DraftUpdate{
			Data: types.FormData{"gst_number": "44CCCCC0000C1Z5"},
		})
		require.NoError(t, err)

		_, _, err = bl.Submit(ctx, draft.ID, otherOrg, userId, saved.Version-1)
		var conflict dao.VersionConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, saved.Version, conflict.CurrentVersion)
		assert.Equal(t, saved.Version-1, conflict.ExpectedVersion)
	})
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	form := createPublishedForm(t)
	orgId := dao.GenUUID()
	reviewerId := dao.GenUUID()

	draft, err := dao.CreateDraft(db, form, orgId, dao.GenUUID())
	require.NoError(t, err)
	saved, err := dao.SaveDraft(db, draft.ID, 0, dao.DraftUpdate{
		Data: types.FormData{"gst_number": "55DDDDD0000D1Z5"},
	})
	require.NoError(t, err)

	submitted, _, err := bl.Submit(ctx, draft.ID, orgId, reviewerId, saved.Version)
	require.NoError(t, err)

	t.Run("allowed transition", func(t *testing.T) {
		inReview, err := bl.Transition(ctx, submitted.ID, reviewerId, types.StatusInReview, submitted.Version)
		require.NoError(t, err)
		assert.Equal(t, types.StatusInReview, inReview.Status)
		assert.Equal(t, submitted.Version+1, inReview.Version)
	})

	t.Run("disallowed transition", func(t *testing.T) {
		var current dao.Submission
		require.NoError(t, db.Where("id = ?", submitted.ID).First(&current).Error)

		_, err := bl.Transition(ctx, submitted.ID, reviewerId, types.StatusDraft, current.Version)
		var defined apierrors.DefinedError
		require.True(t, errors.As(err, &defined))
		assert.Equal(t, apierrors.ErrSubmissionBadTransition.Code, defined.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := bl.Transition(ctx, submitted.ID, reviewerId, "archived", 1)
		assert.ErrorIs(t, err, apierrors.ErrSubmissionBadRequest)
	})
}

func TestSaveEditsPendingSupplier(t *testing.T) {
	ctx := context.Background()
	form := createPublishedForm(t)
	orgId := dao.GenUUID()
	userId := dao.GenUUID()

	draft, err := dao.CreateDraft(db, form, orgId, userId)
	require.NoError(t, err)
	saved, err := dao.SaveDraft(db, draft.ID, 0, dao.DraftUpdate{
		Data: types.FormData{"gst_number": "66EEEEE0000E1Z5", "comment": "initial"},
	})
	require.NoError(t, err)

	require.NoError(t, db.Model(&dao.Submission{}).Where("id = ?", draft.ID).
		Update("status", types.StatusPendingSupplier).Error)

	comment := dao.ReviewComment{
		ID:              dao.GenUUID(),
		SubmissionId:    draft.ID,
		AuthorId:        dao.GenUUID(),
		Body:            "GSTIN looks wrong",
		FieldKeys:       pq.StringArray{"gst_number"},
		SupplierVisible: true,
	}
	require.NoError(t, db.Create(&comment).Error)

	t.Run("edit outside the allow-list is rejected", func(t *testing.T) {
		_, err := bl.SaveEdits(ctx, draft.ID, orgId, saved.Version, types.FormData{
			"gst_number": "66EEEEE0000E1Z5",
			"comment":    "changed",
		}, 0)
		var defined apierrors.DefinedError
		require.True(t, errors.As(err, &defined))
		assert.Equal(t, apierrors.ErrDraftFieldsLocked.Code, defined.Code)
	})

	t.Run("edit of a commented field passes", func(t *testing.T) {
		updated, err := bl.SaveEdits(ctx, draft.ID, orgId, saved.Version, types.FormData{
			"gst_number": "77FFFFF0000F1Z5",
			"comment":    "initial",
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, "77FFFFF0000F1Z5", updated.Data["gst_number"])
	})

	t.Run("edits are forbidden outside editable statuses", func(t *testing.T) {
		require.NoError(t, db.Model(&dao.Submission{}).Where("id = ?", draft.ID).
			Update("status", types.StatusInReview).Error)

		_, err := bl.SaveEdits(ctx, draft.ID, orgId, 0, types.FormData{}, 0)
		assert.ErrorIs(t, err, apierrors.ErrDraftNotEditable)
	})
}

func TestFormDefinitionVersioning(t *testing.T) {
	actorId := dao.GenUUID()

	form := dao.FormDefinition{
		Title: "Logistics suppliers",
		Sections: types.SectionsSlice{
			{Key: "main", Fields: []types.FormField{{Key: "legal_name", Type: types.FieldInput}}},
		},
	}
	require.NoError(t, bl.CreateFormDefinition(&form, actorId))
	assert.Equal(t, 1, form.Version)
	assert.False(t, form.Published)

	t.Run("draft definition mutates in place", func(t *testing.T) {
		updated, err := bl.UpdateFormDefinition(form.ID, actorId, &dao.FormDefinition{
			Title:    "Logistics suppliers v2",
			Sections: form.Sections,
		})
		require.NoError(t, err)
		assert.Equal(t, form.ID, updated.ID)
		assert.Equal(t, 1, updated.Version)
	})

	t.Run("publish", func(t *testing.T) {
		published, err := bl.PublishFormDefinition(form.ID, actorId)
		require.NoError(t, err)
		assert.True(t, published.Published)

		_, err = bl.PublishFormDefinition(form.ID, actorId)
		assert.ErrorIs(t, err, apierrors.ErrFormDefinitionPublished)
	})

	t.Run("publish conflicts within the same scope", func(t *testing.T) {
		rival := dao.FormDefinition{
			Title:    "Logistics suppliers rival",
			Sections: form.Sections,
		}
		require.NoError(t, bl.CreateFormDefinition(&rival, actorId))

		_, err := bl.PublishFormDefinition(rival.ID, actorId)
		assert.ErrorIs(t, err, apierrors.ErrFormDefinitionConflict)
	})

	t.Run("editing a published definition spawns a new version", func(t *testing.T) {
		next, err := bl.UpdateFormDefinition(form.ID, actorId, &dao.FormDefinition{
			Title:    "Logistics suppliers v3",
			Sections: form.Sections,
		})
		require.NoError(t, err)
		assert.NotEqual(t, form.ID, next.ID)
		assert.Equal(t, 2, next.Version)
		assert.False(t, next.Published)
		assert.NotEqual(t, form.Slug, next.Slug)

		// The published version is untouched
		var original dao.FormDefinition
		require.NoError(t, db.Where("id = ?", form.ID).First(&original).Error)
		assert.True(t, original.Published)
		assert.Equal(t, 1, original.Version)
	})

	t.Run("malformed field config is rejected", func(t *testing.T) {
		err := bl.CreateFormDefinition(&dao.FormDefinition{
			Title: "Broken",
			Sections: types.SectionsSlice{
				{Key: "main", Fields: []types.FormField{{Key: "sel", Type: types.FieldSelect}}},
			},
		}, actorId)
		var defined apierrors.DefinedError
		require.True(t, errors.As(err, &defined))
		assert.Equal(t, apierrors.ErrFormCheckFields.Code, defined.Code)
	})
}
