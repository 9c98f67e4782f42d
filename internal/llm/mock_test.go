package llm

import (
	"context"
	"errors"
	"testing"
)

func TestMockClient_FIFO(t *testing.T) {
	t.Parallel()

	m := NewMockClient().
		Enqueue("first").
		EnqueueFailure("rate limited").
		EnqueueError(errors.New("conn reset"))

	ctx := context.Background()

	res, err := m.Chat(ctx, ChatRequest{Model: "mock-default"})
	if err != nil || !res.Success || res.Content != "first" {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	res, err = m.Chat(ctx, ChatRequest{Model: "mock-default"})
	if err != nil || res.Success || res.Error != "rate limited" {
		t.Fatalf("res=%+v err=%v", res, err)
	}

	if _, err = m.Chat(ctx, ChatRequest{Model: "mock-default"}); err == nil {
		t.Fatalf("expected transport error")
	}

	// Exhausted queue fails loudly.
	if _, err = m.Chat(ctx, ChatRequest{Model: "mock-default"}); err == nil {
		t.Fatalf("expected error on empty queue")
	}

	if len(m.Requests) != 4 {
		t.Fatalf("requests=%d", len(m.Requests))
	}
}

func TestMockClient_ContextCancelled(t *testing.T) {
	t.Parallel()

	m := NewMockClient().Enqueue("never delivered")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Chat(ctx, ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestNewClient_ProviderDispatch(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(ClientOptions{Provider: ProviderAnthropic}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("anthropic without key: %v", err)
	}
	if _, err := NewClient(ClientOptions{Provider: ProviderOpenAI}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("openai without key: %v", err)
	}
	if _, err := NewClient(ClientOptions{Provider: "mystery"}); err == nil {
		t.Fatalf("unknown provider accepted")
	}
	c, err := NewClient(ClientOptions{Provider: ProviderMock})
	if err != nil || c == nil {
		t.Fatalf("mock: %v", err)
	}
}

func TestCollectSystem(t *testing.T) {
	t.Parallel()

	system, rest := collectSystem([]Message{
		{Role: "system", Content: "a"},
		{Role: "user", Content: "hi"},
		{Role: "System", Content: "b"},
		{Role: "assistant", Content: "yo"},
	})
	if system != "a\n\nb" {
		t.Fatalf("system=%q", system)
	}
	if len(rest) != 2 || rest[0].Role != "user" || rest[1].Role != "assistant" {
		t.Fatalf("rest=%+v", rest)
	}
}
