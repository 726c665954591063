package upload

import (
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/moodboard/backend/internal/models"
	"github.com/moodboard/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(tagger *testutil.MockTagger) (*Manager, *testutil.MockMediaStore, *testutil.MockBoardStore) {
	media := testutil.NewMockMediaStore()
	board := testutil.NewMockBoardStore()
	var m *Manager
	if tagger == nil {
		m = NewManager(media, board, nil)
	} else {
		m = NewManager(media, board, tagger)
	}
	return m, media, board
}

func runJob(t *testing.T, m *Manager, req Request) *Job {
	t.Helper()
	done := make(chan *Job, 1)
	started := m.Start(req, func(j *Job) { done <- j })
	assert.Equal(t, StatusPending, started.Status)

	select {
	case j := <-done:
		return j
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish")
		return nil
	}
}

func TestManager_UploadTagsItem(t *testing.T) {
	tagger := &testutil.MockTagger{Tags: []string{"sunset", "warm"}}
	m, media, board := newTestManager(tagger)

	job := runJob(t, m, Request{
		WeekID:   "2026-W02",
		Name:     "sunset.png",
		Data:     testutil.PNG(color.RGBA{R: 255, A: 255}),
		X:        360,
		Y:        200,
		Language: "en",
	})

	require.Equal(t, StatusComplete, job.Status, job.Error)
	assert.Equal(t, float64(100), job.Progress)
	require.NotNil(t, job.Item)
	assert.Equal(t, models.KindImage, job.Item.Kind)
	assert.Equal(t, []string{"sunset", "warm"}, job.Item.Tags)
	assert.Equal(t, 1, media.Count())

	stored, err := board.GetItem(context.Background(), job.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, 360, stored.X)
	assert.Equal(t, 200, stored.Y)
	assert.Equal(t, []string{"sunset", "warm"}, stored.Tags)

	calls := tagger.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "image/png", calls[0].MimeType)
	assert.Equal(t, "en", calls[0].Language)

	polled, ok := m.GetJob(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, polled.Status)
}

func TestManager_TaggingFailureKeepsItem(t *testing.T) {
	tagger := &testutil.MockTagger{Err: errors.New("endpoint down")}
	m, _, board := newTestManager(tagger)

	job := runJob(t, m, Request{WeekID: "2026-W02", Name: "a.png", Data: testutil.PNG(color.White)})

	assert.Equal(t, StatusComplete, job.Status)
	assert.Equal(t, "endpoint down", job.TagError)
	require.NotNil(t, job.Item)
	assert.Empty(t, job.Item.Tags)

	items, err := board.ListItems(context.Background(), "2026-W02")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestManager_RejectsNonMedia(t *testing.T) {
	m, media, board := newTestManager(nil)

	job := runJob(t, m, Request{WeekID: "2026-W02", Name: "notes.txt", Data: []byte("hello there")})

	assert.Equal(t, StatusError, job.Status)
	assert.Equal(t, "only images and videos can be added", job.Error)
	assert.Zero(t, media.Count())
	items, _ := board.ListItems(context.Background(), "2026-W02")
	assert.Empty(t, items)
}

func TestManager_InvalidWeekRemovesMedia(t *testing.T) {
	m, media, _ := newTestManager(nil)

	job := runJob(t, m, Request{WeekID: "someday", Name: "a.png", Data: testutil.PNG(color.Black)})

	assert.Equal(t, StatusError, job.Status)
	assert.Contains(t, job.Error, "creating item")
	assert.Zero(t, media.Count(), "media saved before the failure is removed")
}

func TestManager_TagItem(t *testing.T) {
	tagger := &testutil.MockTagger{}
	m, _, board := newTestManager(tagger)

	job := runJob(t, m, Request{WeekID: "2026-W02", Name: "a.png", Data: testutil.PNG(color.Black), Language: "fr"})
	require.Equal(t, StatusComplete, job.Status)

	tagger.Tags = []string{"noir"}
	tags, err := m.TagItem(context.Background(), job.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"noir"}, tags)

	stored, err := board.GetItem(context.Background(), job.Item.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"noir"}, stored.Tags)
	assert.Equal(t, "fr", tagger.Calls()[1].Language, "the item's language is reused")

	_, err = m.TagItem(context.Background(), "missing")
	assert.Error(t, err)
}

func TestManager_CleanupOldJobs(t *testing.T) {
	m, _, _ := newTestManager(nil)
	job := runJob(t, m, Request{WeekID: "2026-W02", Name: "a.png", Data: testutil.PNG(color.Black)})

	assert.Equal(t, 0, m.CleanupOldJobs(time.Hour))
	_, ok := m.GetJob(job.ID)
	assert.True(t, ok)

	assert.Equal(t, 1, m.CleanupOldJobs(-time.Second))
	_, ok = m.GetJob(job.ID)
	assert.False(t, ok)
}
