// mock_tagger.go - Scripted tagger for testing
package testutil

import (
	"context"
	"sync"

	"github.com/moodboard/backend/internal/tagging"
)

// MockTagger returns fixed tags or a fixed error and records its calls
type MockTagger struct {
	mu    sync.Mutex
	Tags  []string
	Err   error
	calls []TagCall
}

// TagCall is one recorded Tag invocation
type TagCall struct {
	MimeType string
	Language string
	Size     int
}

func (m *MockTagger) Tag(_ context.Context, media []byte, mimeType, language string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, TagCall{MimeType: mimeType, Language: language, Size: len(media)})
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]string(nil), m.Tags...), nil
}

// Calls returns the recorded invocations
func (m *MockTagger) Calls() []TagCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TagCall(nil), m.calls...)
}

var _ tagging.Tagger = (*MockTagger)(nil)
