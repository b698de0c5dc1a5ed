package conversation

import (
	"context"
	"fmt"
	"line_chatbot/src/flow"
	"line_chatbot/src/model"
	"line_chatbot/src/storage"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Repository stores chat transcripts
type Repository interface {
	// Load returns the transcript of userID, empty when none is stored.
	Load(ctx context.Context, userID string) (*model.ChatTranscript, error)
	Save(ctx context.Context, userID string, transcript *model.ChatTranscript) error
	Delete(ctx context.Context, userID string) (bool, error)
	Exists(ctx context.Context, userID string) (bool, error)
}

// StoreRepository keeps transcripts under session:chat:{user_id}
type StoreRepository struct {
	store storage.SessionStore
	ttl   time.Duration
}

func NewStoreRepository(store storage.SessionStore, ttl time.Duration) *StoreRepository {
	return &StoreRepository{store: store, ttl: ttl}
}

func (r *StoreRepository) key(userID string) string {
	return storage.SessionKey(model.FlowChat, userID)
}

func (r *StoreRepository) Load(ctx context.Context, userID string) (*model.ChatTranscript, error) {
	raw, ok, err := r.store.Get(ctx, r.key(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat session: %w", err)
	}
	if !ok {
		return &model.ChatTranscript{Turns: []*schema.Message{}}, nil
	}

	s, err := flow.DecodeSession(raw, model.FlowChat)
	if err != nil {
		return nil, err
	}
	return s.Chat, nil
}

// Save rewrites the transcript with a fresh TTL
func (r *StoreRepository) Save(ctx context.Context, userID string, transcript *model.ChatTranscript) error {
	raw, err := flow.EncodeSession(&model.Session{Kind: model.FlowChat, Chat: transcript})
	if err != nil {
		return err
	}
	if err := r.store.Set(ctx, r.key(userID), raw, r.ttl); err != nil {
		return fmt.Errorf("failed to write chat session: %w", err)
	}
	return nil
}

func (r *StoreRepository) Delete(ctx context.Context, userID string) (bool, error) {
	existed, err := r.store.Delete(ctx, r.key(userID))
	if err != nil {
		return false, fmt.Errorf("failed to delete chat session: %w", err)
	}
	return existed, nil
}

func (r *StoreRepository) Exists(ctx context.Context, userID string) (bool, error) {
	_, ok, err := r.store.Get(ctx, r.key(userID))
	if err != nil {
		return false, fmt.Errorf("failed to read chat session: %w", err)
	}
	return ok, nil
}
