package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/lexbr/legal-qa-system/internal/database"
	"github.com/lexbr/legal-qa-system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	t.Helper()

	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	err = db.AutoMigrate(&models.Document{}, &models.DocumentSegment{}, &models.DocumentTask{})
	require.NoError(t, err, "Failed to run migrations")

	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func newTestDocument(id string) *models.Document {
	return &models.Document{
		ID:         id,
		FileName:   "cdc.txt",
		FileType:   "txt",
		FilePath:   "/data/cdc.txt",
		FileSize:   2048,
		Status:     models.DocStatusUploaded,
		DocType:    models.DocTypeLei,
		DocNumber:  "8.078",
		DocYear:    "1990",
		Importance: "alta",
		UpdatedAt:  time.Now(),
	}
}

func TestDocumentRepository_Create(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	doc := newTestDocument("doc-1")

	require.NoError(t, repo.Create(doc))

	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, saved.ID)
	assert.Equal(t, doc.FileName, saved.FileName)
	assert.Equal(t, models.DocTypeLei, saved.DocType)
	assert.Equal(t, "1990", saved.DocYear)

	assert.Error(t, repo.Create(&models.Document{}))
}

func TestDocumentRepository_GetByIDNotFound(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	_, err := repo.GetByID("missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestDocumentRepository_Update(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	doc := newTestDocument("doc-2")
	require.NoError(t, repo.Create(doc))

	doc.Status = models.DocStatusProcessing
	doc.Progress = 40
	require.NoError(t, repo.Update(doc))

	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, saved.Status)
	assert.Equal(t, 40, saved.Progress)
}

func TestDocumentRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	lei := newTestDocument("doc-lei")
	require.NoError(t, repo.Create(lei))

	decreto := newTestDocument("doc-decreto")
	decreto.FileName = "decreto_5903.txt"
	decreto.DocType = models.DocTypeDecreto
	decreto.DocNumber = "5.903"
	decreto.DocYear = "2006"
	decreto.Status = models.DocStatusCompleted
	require.NoError(t, repo.Create(decreto))

	t.Run("no filters", func(t *testing.T) {
		docs, total, err := repo.List(0, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, docs, 2)
	})

	t.Run("by status", func(t *testing.T) {
		docs, total, err := repo.List(0, 10, map[string]interface{}{
			"status": models.DocStatusCompleted,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, docs, 1)
		assert.Equal(t, "doc-decreto", docs[0].ID)
	})

	t.Run("by doc type", func(t *testing.T) {
		docs, total, err := repo.List(0, 10, map[string]interface{}{
			"doc_type": models.DocTypeLei,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, docs, 1)
		assert.Equal(t, "doc-lei", docs[0].ID)
	})

	t.Run("by doc year", func(t *testing.T) {
		_, total, err := repo.List(0, 10, map[string]interface{}{
			"doc_year": "2006",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("by file name", func(t *testing.T) {
		_, total, err := repo.List(0, 10, map[string]interface{}{
			"file_name": "decreto",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("pagination", func(t *testing.T) {
		docs, total, err := repo.List(1, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, docs, 1)
	})
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	doc := newTestDocument("doc-3")
	require.NoError(t, repo.Create(doc))

	require.NoError(t, repo.UpdateStatus(doc.ID, models.DocStatusFailed, "parse error"))

	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, saved.Status)
	assert.Equal(t, "parse error", saved.Error)
	assert.NotNil(t, saved.ProcessedAt)
}

func TestDocumentRepository_UpdateProgress(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	doc := newTestDocument("doc-4")
	require.NoError(t, repo.Create(doc))

	require.NoError(t, repo.UpdateProgress(doc.ID, 150))

	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, saved.Progress)
}

func TestDocumentRepository_Segments(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	doc := newTestDocument("doc-5")
	require.NoError(t, repo.Create(doc))

	segments := []*models.DocumentSegment{
		{DocumentID: doc.ID, SegmentID: "doc-5-seg-0", Position: 0, Text: "Artigo 1: Primeiro."},
		{DocumentID: doc.ID, SegmentID: "doc-5-seg-1", Position: 1, Text: "Artigo 2: Segundo."},
	}
	require.NoError(t, repo.SaveSegments(segments))

	count, err := repo.CountSegments(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := repo.GetSegments(doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Artigo 1: Primeiro.", got[0].Text)
	assert.Equal(t, 0, got[0].Position)

	require.NoError(t, repo.DeleteSegments(doc.ID))
	count, err = repo.CountSegments(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDocumentRepository_Delete(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	doc := newTestDocument("doc-6")
	require.NoError(t, repo.Create(doc))
	require.NoError(t, repo.SaveSegment(&models.DocumentSegment{
		DocumentID: doc.ID, SegmentID: "doc-6-seg-0", Position: 0, Text: "texto",
	}))

	require.NoError(t, repo.Delete(doc.ID))

	_, err := repo.GetByID(doc.ID)
	assert.Error(t, err)

	count, err := repo.CountSegments(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
