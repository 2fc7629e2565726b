package api

import (
	"context"
	"sync"
	"testing"

	"github.com/20223096/mbti-app/internal/analysis"
	"github.com/20223096/mbti-app/internal/pipeline"
	"github.com/20223096/mbti-app/internal/profile"
	"github.com/20223096/mbti-app/internal/storage"
	"github.com/20223096/mbti-app/internal/traits"
)

// --- mocks ---

type stubAnalyzer struct {
	mu    sync.Mutex
	resp  analysis.ChatResponse
	err   error
	block chan struct{} // when set, Chat waits for it to close
	calls int
}

func (s *stubAnalyzer) Chat(_ context.Context, _ analysis.ChatRequest) (analysis.ChatResponse, error) {
	s.mu.Lock()
	s.calls++
	block, resp, err := s.block, s.resp, s.err
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return resp, err
}

func patchResponse(text string, followUps []string, patches ...traits.PatchEntry) analysis.ChatResponse {
	a := analysis.Analysis{}
	if patches != nil {
		a["updated_traits_patch"] = mustJSON(patches)
	}
	if followUps != nil {
		a["follow_up_questions"] = mustJSON(followUps)
	}
	return analysis.ChatResponse{AssistantMessage: text, Analysis: a}
}

// --- helpers ---

type testEnv struct {
	store    *storage.Store
	pipe     *pipeline.Pipeline
	analyzer *stubAnalyzer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	a := &stubAnalyzer{resp: analysis.ChatResponse{AssistantMessage: "ok"}}
	p := pipeline.New(a, profile.NewManager(store), pipeline.Options{Journal: store})
	return &testEnv{store: store, pipe: p, analyzer: a}
}
