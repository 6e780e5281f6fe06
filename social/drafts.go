package social

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"hive-client/cache"
	"hive-client/chain"
)

// Draft is an unpublished post kept locally. Drafts never touch the
// chain until published through SubmitPost.
type Draft struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Category string    `json:"category"`
	Tags     []string  `json:"tags,omitempty"`
	Updated  time.Time `json:"updated"`
}

// DraftStore persists drafts in a cache backend using durable
// zero-TTL entries; back it with SQLite so drafts survive restarts.
type DraftStore struct {
	backend cache.Backend
}

// NewDraftStore wraps backend.
func NewDraftStore(backend cache.Backend) *DraftStore {
	return &DraftStore{backend: backend}
}

func draftKey(author, id string) string {
	return cache.Key("draft", author, id)
}

func newDraftID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("social: draft id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Save stores a draft, assigning an ID when missing, and returns it.
func (s *DraftStore) Save(ctx context.Context, d Draft) (Draft, error) {
	if d.Author == "" {
		return Draft{}, chain.NewValidationError("author", "required")
	}
	if d.ID == "" {
		id, err := newDraftID()
		if err != nil {
			return Draft{}, err
		}
		d.ID = id
	}
	d.Updated = time.Now().UTC()

	raw, err := json.Marshal(d)
	if err != nil {
		return Draft{}, fmt.Errorf("social: encode draft: %w", err)
	}
	if err := s.backend.Set(ctx, draftKey(d.Author, d.ID), raw, 0); err != nil {
		return Draft{}, err
	}
	if err := s.updateIndex(ctx, d.Author, d.ID, true); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Get loads one draft.
func (s *DraftStore) Get(ctx context.Context, author, id string) (*Draft, error) {
	raw, found, err := s.backend.Get(ctx, draftKey(author, id))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, chain.NewValidationError("draft", fmt.Sprintf("no draft %s", id))
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("social: decode draft %s: %w", id, err)
	}
	return &d, nil
}

// Delete removes one draft.
func (s *DraftStore) Delete(ctx context.Context, author, id string) error {
	if err := s.backend.Delete(ctx, draftKey(author, id)); err != nil {
		return err
	}
	return s.updateIndex(ctx, author, id, false)
}

// List returns an author's drafts, most recently updated first. The
// draft index is tracked alongside the entries so listing works on
// backends without key iteration.
func (s *DraftStore) List(ctx context.Context, author string) ([]Draft, error) {
	ids, err := s.index(ctx, author)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, draftKey(author, id))
	}
	found, err := s.backend.GetMultiple(ctx, keys)
	if err != nil {
		return nil, err
	}

	var out []Draft
	for _, raw := range found {
		var d Draft
		if json.Unmarshal(raw, &d) == nil {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Updated.After(out[j].Updated)
	})
	return out, nil
}

func indexKey(author string) string {
	return cache.Key("draftindex", author)
}

func (s *DraftStore) index(ctx context.Context, author string) ([]string, error) {
	raw, found, err := s.backend.Get(ctx, indexKey(author))
	if err != nil || !found {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}

func (s *DraftStore) updateIndex(ctx context.Context, author, id string, add bool) error {
	ids, err := s.index(ctx, author)
	if err != nil {
		return err
	}
	next := make([]string, 0, len(ids)+1)
	for _, existing := range ids {
		if existing != id {
			next = append(next, existing)
		}
	}
	if add {
		next = append(next, id)
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, indexKey(author), raw, 0)
}
