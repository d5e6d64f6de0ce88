package dao

import (
	"errors"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/aisa-it/onboard/onboard.go/internal/onboard/config"
	"github.com/aisa-it/onboard/onboard.go/internal/onboard/types"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var db *gorm.DB

func TestMain(m *testing.M) {
	webURL, _ := url.Parse("http://localhost:8080")
	Config = &config.Config{WebURL: webURL}

	var err error
	db, err = gorm.Open(sqlite.Open("file:dao?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		os.Exit(1)
	}

	if err := db.AutoMigrate(
		&Entity{},
		&Geography{},
		&FormDefinition{},
		&DocumentRequirement{},
		&Submission{},
		&ReviewComment{},
		&Attachment{},
		&AuditRecord{},
	); err != nil {
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func createTestForm(t *testing.T) *FormDefinition {
	t.Helper()
	form := FormDefinition{
		ID:          GenUUID(),
		CreatedById: GenUUID(),
		Slug:        GenSlug(),
		Title:       "Supplier onboarding",
		Version:     1,
		Published:   true,
		Sections: types.SectionsSlice{
			{
				Key:   "company",
				Label: "Company",
				Fields: []types.FormField{
					{Key: "legal_name", Label: "Legal name", Type: types.FieldInput, Required: true},
				},
			},
		},
	}
	require.NoError(t, db.Create(&form).Error)
	return &form
}

func TestUpdateSubmissionVersioned(t *testing.T) {
	form := createTestForm(t)
	orgId := GenUUID()

	draft, err := CreateDraft(db, form, orgId, GenUUID())
	require.NoError(t, err)
	assert.Equal(t, 1, draft.Version)

	t.Run("success bumps version", func(t *testing.T) {
		updated, err := UpdateSubmissionVersioned(db, draft.ID, 1, map[string]interface{}{
			"current_step": 1,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, 1, updated.CurrentStep)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		_, err := UpdateSubmissionVersioned(db, draft.ID, 1, map[string]interface{}{
			"current_step": 5,
		})
		require.Error(t, err)

		var conflict VersionConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, 2, conflict.CurrentVersion)
		assert.Equal(t, 1, conflict.ExpectedVersion)

		// Losing write must not touch the row
		var current Submission
		require.NoError(t, db.Where("id = ?", draft.ID).First(&current).Error)
		assert.Equal(t, 1, current.CurrentStep)
	})

	t.Run("missing submission", func(t *testing.T) {
		_, err := UpdateSubmissionVersioned(db, GenUUID(), 1, map[string]interface{}{
			"current_step": 1,
		})
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("exactly one of competing writes wins", func(t *testing.T) {
		var current Submission
		require.NoError(t, db.Where("id = ?", draft.ID).First(&current).Error)

		success := 0
		for i := 0; i < 5; i++ {
			if _, err := UpdateSubmissionVersioned(db, draft.ID, current.Version, map[string]interface{}{
				"current_step": 3,
			}); err == nil {
				success++
			} else {
				var conflict VersionConflictError
				assert.True(t, errors.As(err, &conflict))
			}
		}
		assert.Equal(t, 1, success)
	})
}

func TestDraftLifecycle(t *testing.T) {
	form := createTestForm(t)
	orgId := GenUUID()

	first, err := CreateDraft(db, form, orgId, GenUUID())
	require.NoError(t, err)

	t.Run("versioned save", func(t *testing.T) {
		saved, err := SaveDraft(db, first.ID, first.Version, DraftUpdate{
			Data:           types.FormData{"legal_name": "Acme LLC"},
			CurrentStep:    1,
			TouchedKeys:    []string{"legal_name"},
			CompletedSteps: []int{0},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, saved.Version)
		assert.Equal(t, "Acme LLC", saved.Data["legal_name"])
		assert.Equal(t, pq.StringArray{"legal_name"}, saved.TouchedKeys)
	})

	t.Run("last-write-wins save without version", func(t *testing.T) {
		saved, err := SaveDraft(db, first.ID, 0, DraftUpdate{
			Data:        types.FormData{"legal_name": "Acme Inc"},
			CurrentStep: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, 3, saved.Version)
		assert.Equal(t, "Acme Inc", saved.Data["legal_name"])
	})

	t.Run("load scoped by organization", func(t *testing.T) {
		loaded, err := LoadDraft(db, first.ID, orgId)
		require.NoError(t, err)
		require.NotNil(t, loaded.FormDefinition)
		assert.Equal(t, form.Title, loaded.FormDefinition.Title)

		_, err = LoadDraft(db, first.ID, GenUUID())
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		second, err := CreateDraft(db, form, orgId, GenUUID())
		require.NoError(t, err)
		require.NoError(t, db.Model(&Submission{}).Where("id = ?", second.ID).
			Update("updated_at", time.Now().Add(time.Hour)).Error)

		summaries, err := ListDraftSummaries(db, orgId)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, second.ID.String(), summaries[0].ID)
		assert.Equal(t, first.ID.String(), summaries[1].ID)
		assert.Equal(t, form.Title, summaries[0].Title)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, DeleteDraft(db, first.ID, orgId))
		_, err := LoadDraft(db, first.ID, orgId)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestPurgeStaleDrafts(t *testing.T) {
	form := createTestForm(t)
	orgId := GenUUID()

	stale, err := CreateDraft(db, form, orgId, GenUUID())
	require.NoError(t, err)
	require.NoError(t, db.Model(&Submission{}).Where("id = ?", stale.ID).
		Update("updated_at", time.Now().Add(-91*24*time.Hour)).Error)

	fresh, err := CreateDraft(db, form, orgId, GenUUID())
	require.NoError(t, err)

	purged, err := PurgeStaleDrafts(db, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = LoadDraft(db, stale.ID, orgId)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = LoadDraft(db, fresh.ID, orgId)
	assert.NoError(t, err)
}

func TestCloseExpiredFormDefinitions(t *testing.T) {
	expired := createTestForm(t)
	require.NoError(t, db.Model(&FormDefinition{}).Where("id = ?", expired.ID).
		Update("end_date", time.Now().UTC().AddDate(0, 0, -2)).Error)

	open := createTestForm(t)
	require.NoError(t, db.Model(&FormDefinition{}).Where("id = ?", open.ID).
		Update("end_date", time.Now().UTC().AddDate(0, 0, 2)).Error)

	evergreen := createTestForm(t)

	closed, err := CloseExpiredFormDefinitions(db)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	isPublished := func(id uuid.UUID) bool {
		var published bool
		require.NoError(t, db.Model(&FormDefinition{}).Where("id = ?", id).
			Pluck("published", &published).Error)
		return published
	}
	assert.False(t, isPublished(expired.ID))
	assert.True(t, isPublished(open.ID))
	assert.True(t, isPublished(evergreen.ID))
}

func TestHasActiveSubmission(t *testing.T) {
	form := createTestForm(t)
	orgId := GenUUID()

	draft, err := CreateDraft(db, form, orgId, GenUUID())
	require.NoError(t, err)

	t.Run("the checked submission itself is excluded", func(t *testing.T) {
		active, err := HasActiveSubmission(db, orgId, form.ID, draft.ID)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("another draft counts", func(t *testing.T) {
		second, err := CreateDraft(db, form, orgId, GenUUID())
		require.NoError(t, err)

		active, err := HasActiveSubmission(db, orgId, form.ID, draft.ID)
		require.NoError(t, err)
		assert.True(t, active)

		require.NoError(t, db.Delete(&Submission{}, "id = ?", second.ID).Error)
	})

	t.Run("submitted counts", func(t *testing.T) {
		require.NoError(t, db.Model(&Submission{}).Where("id = ?", draft.ID).
			Update("status", types.StatusSubmitted).Error)

		active, err := HasActiveSubmission(db, orgId, form.ID, uuid.Nil)
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("rejected does not count", func(t *testing.T) {
		require.NoError(t, db.Model(&Submission{}).Where("id = ?", draft.ID).
			Update("status", types.StatusRejected).Error)

		active, err := HasActiveSubmission(db, orgId, form.ID, uuid.Nil)
		require.NoError(t, err)
		assert.False(t, active)
	})
}

func TestOpenSupplierFieldKeys(t *testing.T) {
	form := createTestForm(t)
	orgId := GenUUID()

	draft, err := CreateDraft(db, form, orgId, GenUUID())
	require.NoError(t, err)

	comments := []ReviewComment{
		{
			ID:              GenUUID(),
			SubmissionId:    draft.ID,
			AuthorId:        GenUUID(),
			Body:            "Fix legal name",
			FieldKeys:       pq.StringArray{"legal_name", "tax_id"},
			SupplierVisible: true,
		},
		{
			ID:              GenUUID(),
			SubmissionId:    draft.ID,
			AuthorId:        GenUUID(),
			Body:            "Internal note",
			FieldKeys:       pq.StringArray{"bank_account"},
			SupplierVisible: false,
		},
		{
			ID:              GenUUID(),
			SubmissionId:    draft.ID,
			AuthorId:        GenUUID(),
			Body:            "Already fixed",
			FieldKeys:       pq.StringArray{"gst_number"},
			SupplierVisible: true,
			Resolved:        true,
		},
	}
	for i := range comments {
		require.NoError(t, db.Create(&comments[i]).Error)
	}

	keys, err := OpenSupplierFieldKeys(db, draft.ID)
	require.NoError(t, err)

	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "legal_name")
	assert.Contains(t, keys, "tax_id")
	assert.NotContains(t, keys, "bank_account")
	assert.NotContains(t, keys, "gst_number")
}

func TestUpsertDocumentRequirement(t *testing.T) {
	form := createTestForm(t)

	req := DocumentRequirement{
		FormDefinitionId: form.ID,
		Key:              "tax_certificate",
		Label:            "Tax certificate",
		Required:         true,
		MaxSizeBytes:     5 << 20,
		MimeTypes:        pq.StringArray{"application/pdf"},
	}
	require.NoError(t, UpsertDocumentRequirement(db, &req))

	update := DocumentRequirement{
		FormDefinitionId: form.ID,
		Key:              "tax_certificate",
		Label:            "Tax registration certificate",
		Required:         false,
		MaxSizeBytes:     10 << 20,
		MimeTypes:        pq.StringArray{"application/pdf", "image/png"},
	}
	require.NoError(t, UpsertDocumentRequirement(db, &update))

	var reqs []DocumentRequirement
	require.NoError(t, db.Where("form_definition_id = ?", form.ID).Find(&reqs).Error)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Tax registration certificate", reqs[0].Label)
	assert.False(t, reqs[0].Required)
	assert.Len(t, reqs[0].MimeTypes, 2)
}
