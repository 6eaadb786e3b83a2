package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/vellum/internal/resilience"
	embedmock "github.com/MrWong99/vellum/pkg/provider/embeddings/mock"
	"github.com/MrWong99/vellum/pkg/provider/llm"
	llmmock "github.com/MrWong99/vellum/pkg/provider/llm/mock"
)

func TestBoundLLM_AppliesDeadline(t *testing.T) {
	inner := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			deadline, ok := ctx.Deadline()
			if !ok {
				t.Error("expected a deadline on the call context")
			}
			if remaining := time.Until(deadline); remaining > time.Second {
				t.Errorf("deadline too far out: %v", remaining)
			}
			return &llm.CompletionResponse{Content: "ok"}, nil
		},
	}

	bound := resilience.NewBoundLLM(inner, time.Second)
	resp, err := bound.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content: got %q", resp.Content)
	}
}

func TestBoundLLM_TimeoutExpires(t *testing.T) {
	inner := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	bound := resilience.NewBoundLLM(inner, 20*time.Millisecond)
	_, err := bound.Complete(context.Background(), llm.CompletionRequest{})
	if err == nil {
		t.Fatal("expected deadline error, got nil")
	}
}

func TestBoundLLM_ZeroTimeoutUnbounded(t *testing.T) {
	inner := &llmmock.Provider{
		CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if _, ok := ctx.Deadline(); ok {
				t.Error("expected no deadline when timeout is zero")
			}
			return &llm.CompletionResponse{}, nil
		},
	}

	bound := resilience.NewBoundLLM(inner, 0)
	if _, err := bound.Complete(context.Background(), llm.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
}

func TestBoundLLM_ModelIDDelegates(t *testing.T) {
	bound := resilience.NewBoundLLM(&llmmock.Provider{ModelIDValue: "gpt-4o-mini"}, time.Second)
	if got := bound.ModelID(); got != "gpt-4o-mini" {
		t.Errorf("ModelID: got %q", got)
	}
}

func TestBoundEmbeddings_AppliesDeadline(t *testing.T) {
	inner := &embedmock.Provider{
		EmbedBatchFunc: func(texts []string) ([][]float32, error) {
			return make([][]float32, len(texts)), nil
		},
	}

	bound := resilience.NewBoundEmbeddings(inner, time.Second)
	if _, err := bound.EmbedBatch(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}

	calls := inner.EmbedBatchCalls
	if len(calls) != 1 {
		t.Fatalf("expected 1 batch call, got %d", len(calls))
	}
	if _, ok := calls[0].Ctx.Deadline(); !ok {
		t.Error("expected a deadline on the batch call context")
	}
}

func TestBoundEmbeddings_PassthroughMetadata(t *testing.T) {
	inner := &embedmock.Provider{DimensionsValue: 768, ModelIDValue: "nomic-embed-text"}
	bound := resilience.NewBoundEmbeddings(inner, time.Second)

	if got := bound.Dimensions(); got != 768 {
		t.Errorf("Dimensions: got %d", got)
	}
	if got := bound.ModelID(); got != "nomic-embed-text" {
		t.Errorf("ModelID: got %q", got)
	}
}
