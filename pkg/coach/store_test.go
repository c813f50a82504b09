package coach

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(id string, at time.Time) *FeedbackReport {
	return &FeedbackReport{
		ID:           id,
		CreatedAt:    at,
		Selection:    Selection{Language: "en", Role: "backend", Level: "mid"},
		OverallScore: 64,
		Summary:      "Decent.",
		Strengths:    []string{"structure"},
		Improvements: []string{"examples"},
		QuestionFeedback: []QuestionFeedback{
			{Question: "Q1", Answer: "A1", Assessment: "ok", Score: 6},
		},
	}
}

func openStores(t *testing.T) map[string]ReportStore {
	t.Helper()
	dir := t.TempDir()

	fileStore, err := OpenStore(&Config{StoreBackend: StoreBackendFile, StorePath: filepath.Join(dir, "nested", "reports.json")})
	require.NoError(t, err)
	sqliteStore, err := OpenStore(&Config{StoreBackend: StoreBackendSQLite, StorePath: filepath.Join(dir, "reports.db")})
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]ReportStore{"file": fileStore, "sqlite": sqliteStore}
}

func TestReportStores(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			list, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			require.NoError(t, store.Save(ctx, sampleReport("a", base)))
			require.NoError(t, store.Save(ctx, sampleReport("b", base.Add(time.Hour))))

			list, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "b", list[0].ID, "newest first")

			got, err := store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "Decent.", got.Summary)
			assert.Equal(t, "backend", got.Selection.Role)
			assert.Len(t, got.QuestionFeedback, 1)

			_, err = store.Get(ctx, "missing")
			assert.True(t, IsErrorCode(err, ErrCodeNotFound))

			changed := sampleReport("a", base)
			changed.Summary = "rewritten"
			err = store.Save(ctx, changed)
			assert.True(t, IsErrorCode(err, ErrCodeStorage), "saving an id twice is rejected")

			got, err = store.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "Decent.", got.Summary, "existing entries are never rewritten")

			assert.Error(t, store.Save(ctx, &FeedbackReport{}))
		})
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = store.List(context.Background())
	assert.True(t, IsErrorCode(err, ErrCodeStorage))

	err = store.Save(context.Background(), sampleReport("x", time.Now()))
	assert.Error(t, err)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "{not json", string(data), "corrupt file is left untouched")
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	_, err := OpenStore(&Config{StoreBackend: "redis", StorePath: "x"})
	assert.True(t, IsErrorCode(err, ErrCodeConfigInvalid))
}
