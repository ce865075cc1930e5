package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devchat/devchat-service/internal/config"
	"github.com/devchat/devchat-service/internal/models"
	"github.com/devchat/devchat-service/internal/services/cache"
	"github.com/devchat/devchat-service/internal/services/directory"
	"github.com/devchat/devchat-service/internal/services/engine"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	*directory.MemoryStore
	getCalls int32
}

func (c *countingStore) GetChatbot(ctx context.Context, ownerID, chatbotID string) (*models.Chatbot, error) {
	atomic.AddInt32(&c.getCalls, 1)
	return c.MemoryStore.GetChatbot(ctx, ownerID, chatbotID)
}

type mockModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (m *mockModel) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func (m *mockModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func testConfig() *config.Config {
	return &config.Config{
		Cache: config.CacheConfig{
			Enabled:    true,
			Type:       "memory",
			ContextTTL: 2 * time.Hour,
		},
		Chat: config.ChatConfig{
			MaxHistoryTurns: 20,
			MaxMessageBytes: 4096,
		},
	}
}

func newTestPipeline(t *testing.T, model *mockModel) (*Pipeline, *countingStore) {
	t.Helper()
	log := logrus.New()
	cfg := testConfig()

	store := &countingStore{MemoryStore: directory.NewMemoryStore(log)}
	dir := directory.NewManagerWithStore(store, nil, log)

	cacheService, err := cache.NewService(cfg, log)
	require.NoError(t, err)

	engines := engine.NewRegistry(&cfg.Chat, model, nil, log)
	return NewPipeline(cfg, dir, cacheService, engines, nil, log), store
}

func seedChatbot(t *testing.T, store *countingStore, data models.ContextData) {
	t.Helper()
	err := store.CreateChatbot(context.Background(), &models.Chatbot{
		ID:          "bot-1",
		OwnerID:     "owner-1",
		Name:        "Support Bot",
		Description: "answers support questions",
		ContextData: data,
	})
	require.NoError(t, err)
}

func TestResolveContextUnknownChatbot(t *testing.T) {
	p, _ := newTestPipeline(t, &mockModel{reply: "ok"})

	_, err := p.ResolveContext(context.Background(), "owner-1", "missing")
	require.Error(t, err)
	require.Equal(t, CodeNotFound, CodeOf(err))

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "chatbot_not_found", cerr.Reason)
}

func TestResolveContextEmptyContext(t *testing.T) {
	p, store := newTestPipeline(t, &mockModel{reply: "ok"})
	seedChatbot(t, store, models.ContextData{})

	_, err := p.ResolveContext(context.Background(), "owner-1", "bot-1")
	require.Equal(t, CodeNotFound, CodeOf(err))

	var cerr *Error
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "no_context_data", cerr.Reason)
}

func TestResolveContextTextVerbatim(t *testing.T) {
	p, store := newTestPipeline(t, &mockModel{reply: "ok"})
	seedChatbot(t, store, models.NewTextContext("You are a pirate. Answer in rhyme."))

	instruction, err := p.ResolveContext(context.Background(), "owner-1", "bot-1")
	require.NoError(t, err)
	require.Equal(t, "You are a pirate. Answer in rhyme.", instruction)
}

func TestResolveContextMappingOrder(t *testing.T) {
	p, store := newTestPipeline(t, &mockModel{reply: "ok"})
	seedChatbot(t, store, models.NewMappingContext(
		models.ContextPair{Key: "a", Value: "1"},
		models.ContextPair{Key: "b", Value: "2"},
	))

	instruction, err := p.ResolveContext(context.Background(), "owner-1", "bot-1")
	require.NoError(t, err)
	require.Equal(t, "a is 1\nb is 2", instruction)
}

func TestResolveContextWarmCacheIsIdempotent(t *testing.T) {
	p, store := newTestPipeline(t, &mockModel{reply: "ok"})
	seedChatbot(t, store, models.NewMappingContext(
		models.ContextPair{Key: "tone", Value: "formal"},
		models.ContextPair{Key: "topic", Value: "billing"},
	))

	first, err := p.ResolveContext(context.Background(), "owner-1", "bot-1")
	require.NoError(t, err)
	second, err := p.ResolveContext(context.Background(), "owner-1", "bot-1")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.EqualValues(t, 1, atomic.LoadInt32(&store.getCalls), "warm cache must skip the directory")
}

func TestResolveContextCacheKeyedByChatbot(t *testing.T) {
	p, store := newTestPipeline(t, &mockModel{reply: "ok"})
	seedChatbot(t, store, models.NewTextContext("context for bot-1"))
	require.NoError(t, store.CreateChatbot(context.Background(), &models.Chatbot{
		ID:          "bot-2",
		OwnerID:     "owner-1",
		Name:        "Second Bot",
		Description: "d",
		ContextData: models.NewTextContext("context for bot-2"),
	}))

	first, err := p.ResolveContext(context.Background(), "owner-1", "bot-1")
	require.NoError(t, err)
	second, err := p.ResolveContext(context.Background(), "owner-1", "bot-2")
	require.NoError(t, err)
	require.NotEqual(t, first, second, "a cache hit must never serve another chatbot's context")
}

func TestConcurrentColdResolves(t *testing.T) {
	p, store := newTestPipeline(t, &mockModel{reply: "ok"})
	seedChatbot(t, store, models.NewTextContext("shared context"))

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			instruction, err := p.ResolveContext(context.Background(), "owner-1", "bot-1")
			require.NoError(t, err)
			results[i] = instruction
		}(i)
	}
	wg.Wait()

	require.Equal(t, results[0], results[1])
	// Without request coalescing two concurrent misses may each read the
	// directory; more than two reads would mean the cache write never landed
	require.LessOrEqual(t, atomic.LoadInt32(&store.getCalls), int32(2))
}

func TestHandleValidation(t *testing.T) {
	model := &mockModel{reply: "ok"}
	p, _ := newTestPipeline(t, model)

	_, err := p.Handle(context.Background(), Request{ChatbotID: "b", Message: "hi"})
	require.Equal(t, CodeBadRequest, CodeOf(err))

	_, err = p.Handle(context.Background(), Request{OwnerID: "o", ChatbotID: "b"})
	require.Equal(t, CodeBadRequest, CodeOf(err))

	_, err = p.Handle(context.Background(), Request{
		OwnerID: "o", ChatbotID: "b", Message: strings.Repeat("x", 5000),
	})
	require.Equal(t, CodeBadRequest, CodeOf(err))

	// Rejected input never reaches the model
	require.Equal(t, 0, model.callCount())
}

func TestHandleAppendsOneStarter(t *testing.T) {
	model := &mockModel{reply: "The invoice is due on the 5th."}
	p, store := newTestPipeline(t, model)
	seedChatbot(t, store, models.NewMappingContext(
		models.ContextPair{Key: "tone", Value: "formal"},
	))

	response, err := p.Handle(context.Background(), Request{
		OwnerID: "owner-1", ChatbotID: "bot-1", Message: "hello",
	})
	require.NoError(t, err)

	matched := false
	for _, starter := range defaultStarters {
		if response == model.reply+" "+starter {
			matched = true
			break
		}
	}
	require.True(t, matched, "response %q must be the reply plus exactly one starter", response)

	// The normalized instruction reached the model, exactly once
	require.Equal(t, 1, model.callCount())
	require.Contains(t, model.prompts[0], "tone is formal")
}

func TestHandleModelUnavailable(t *testing.T) {
	model := &mockModel{err: errors.New("upstream quota exhausted")}
	p, store := newTestPipeline(t, model)
	seedChatbot(t, store, models.NewTextContext("ctx"))

	_, err := p.Handle(context.Background(), Request{
		OwnerID: "owner-1", ChatbotID: "bot-1", Message: "hello",
	})
	require.Equal(t, CodeModelUnavailable, CodeOf(err))
	require.ErrorContains(t, err, "upstream quota exhausted")
}

func TestHandleSeedsHistory(t *testing.T) {
	model := &mockModel{reply: "ok"}
	p, store := newTestPipeline(t, model)
	seedChatbot(t, store, models.NewTextContext("ctx"))

	_, err := p.Handle(context.Background(), Request{
		OwnerID:   "owner-1",
		ChatbotID: "bot-1",
		Message:   "third message",
		History:   []string{"first message", "first reply"},
	})
	require.NoError(t, err)
	require.Contains(t, model.prompts[0], "Human: first message")
	require.Contains(t, model.prompts[0], "AI: first reply")
}
