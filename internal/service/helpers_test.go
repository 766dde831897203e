package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chat-bridge-go/internal/config"
	"chat-bridge-go/internal/model"
	"chat-bridge-go/internal/repository"
	"chat-bridge-go/pkg/database"
	"chat-bridge-go/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestRepo(t *testing.T) repository.MessageRepository {
	t.Helper()
	db, err := database.NewDB(config.DatabaseConfig{Driver: "sqlite", DSN: t.TempDir() + "/service.db"})
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return repository.NewMessageRepository(db)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// stubRepo injects failures in front of an optional real repository.
type stubRepo struct {
	repository.MessageRepository

	maxErr     error
	listErr    error
	countErr   error
	failCreate func(m *model.Message) error

	mu      sync.Mutex
	created int
}

func (r *stubRepo) Create(ctx context.Context, m *model.Message) error {
	r.mu.Lock()
	r.created++
	r.mu.Unlock()
	if r.failCreate != nil {
		if err := r.failCreate(m); err != nil {
			return err
		}
	}
	return r.MessageRepository.Create(ctx, m)
}

func (r *stubRepo) MaxGroupID(ctx context.Context, conversationID string) (int64, error) {
	if r.maxErr != nil {
		return 0, r.maxErr
	}
	return r.MessageRepository.MaxGroupID(ctx, conversationID)
}

func (r *stubRepo) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.MessageRepository.ListByConversation(ctx, conversationID)
}

func (r *stubRepo) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	if r.countErr != nil {
		return 0, r.countErr
	}
	return r.MessageRepository.CountByConversation(ctx, conversationID)
}

func (r *stubRepo) createCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

type sendAttempt struct {
	chatID    int64
	text      string
	parseMode string
	failed    bool
}

// fakeBot records every SendMessage attempt. sendErr decides whether an attempt fails.
type fakeBot struct {
	mu       sync.Mutex
	attempts []sendAttempt
	sendErr  func(text, parseMode string) error
}

var errSendRejected = errors.New("Bad Request: can't parse entities")

func failFormatted(_ string, parseMode string) error {
	if parseMode != "" {
		return errSendRejected
	}
	return nil
}

func failAlways(string, string) error { return errSendRejected }

func (b *fakeBot) SendMessage(_ context.Context, chatID int64, text, parseMode string) error {
	var err error
	if b.sendErr != nil {
		err = b.sendErr(text, parseMode)
	}
	b.mu.Lock()
	b.attempts = append(b.attempts, sendAttempt{chatID: chatID, text: text, parseMode: parseMode, failed: err != nil})
	b.mu.Unlock()
	return err
}

func (b *fakeBot) SetWebhook(context.Context, string, string) error { return nil }

func (b *fakeBot) all() []sendAttempt {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sendAttempt(nil), b.attempts...)
}

func (b *fakeBot) delivered() []string {
	var out []string
	for _, a := range b.all() {
		if !a.failed {
			out = append(out, a.text)
		}
	}
	return out
}

// fakeResponder echoes the prompt unless reply or err is set.
type fakeResponder struct {
	reply string
	err   error
}

func (r fakeResponder) Complete(_ context.Context, prompt string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.reply != "" {
		return r.reply, nil
	}
	return prompt, nil
}

// brokenCache fails every call.
type brokenCache struct{}

var errCacheDown = errors.New("cache down")

func (brokenCache) Get(context.Context, string) (*repository.CachedHistory, error) {
	return nil, errCacheDown
}
func (brokenCache) Set(context.Context, string, *repository.CachedHistory) error { return errCacheDown }
func (brokenCache) Invalidate(context.Context, string) error                     { return errCacheDown }
