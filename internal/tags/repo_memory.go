package tags

import (
	"context"
	"sort"
	"sync"
)

type link struct {
	documentID string
	tagID      string
}

type MemoryRepo struct {
	mu    sync.RWMutex
	tags  map[string]Tag
	links map[link]struct{}
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tags: make(map[string]Tag), links: make(map[link]struct{})}
}

func (r *MemoryRepo) Create(ctx context.Context, tag Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tags {
		if t.UserID == tag.UserID && nameKey(t.Name) == nameKey(tag.Name) {
			return ErrDuplicate
		}
	}
	r.tags[tag.ID] = tag
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Tag, error) {
	if err := ctx.Err(); err != nil {
		return Tag{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tags[id]
	if !ok {
		return Tag{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string) ([]Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Tag{}
	for _, t := range r.tags {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortByName(out)
	return out, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tags[id]; !ok {
		return ErrNotFound
	}
	delete(r.tags, id)
	for l := range r.links {
		if l.tagID == id {
			delete(r.links, l)
		}
	}
	return nil
}

func (r *MemoryRepo) Attach(ctx context.Context, documentID, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tags[tagID]; !ok {
		return ErrNotFound
	}
	r.links[link{documentID: documentID, tagID: tagID}] = struct{}{}
	return nil
}

func (r *MemoryRepo) Detach(ctx context.Context, documentID, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.links, link{documentID: documentID, tagID: tagID})
	return nil
}

func (r *MemoryRepo) ListForDocument(ctx context.Context, documentID string) ([]Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Tag{}
	for l := range r.links {
		if l.documentID != documentID {
			continue
		}
		if t, ok := r.tags[l.tagID]; ok {
			out = append(out, t)
		}
	}
	sortByName(out)
	return out, nil
}

func (r *MemoryRepo) DeleteByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for id, t := range r.tags {
		if t.UserID != userID {
			continue
		}
		delete(r.tags, id)
		count++
		for l := range r.links {
			if l.tagID == id {
				delete(r.links, l)
			}
		}
	}
	return count, nil
}

func sortByName(tags []Tag) {
	sort.Slice(tags, func(i, j int) bool { return nameKey(tags[i].Name) < nameKey(tags[j].Name) })
}

var _ Repo = (*MemoryRepo)(nil)
