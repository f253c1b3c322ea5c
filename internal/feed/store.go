// Package feed holds the in-memory, most-recent-first list of posts shown
// in the feed.
//
// Store mirrors what the UI shows: an ordered slice, a loading flag, the
// last error, and the pagination cursor. It is mutated only through the
// named operations below. Unlike the original single-threaded UI, HTTP
// handlers call it from many goroutines, so every operation takes the lock.
package feed

import (
	"sync"

	"github.com/toptuitions/toptuitions/internal/model"
)

// Cursor identifies the last post loaded, so the next page can start after it.
type Cursor struct {
	PostID    string `json:"postId"`
	CreatedAt int64  `json:"createdAt"` // unix nanoseconds
}

// IsZero reports whether no page has been loaded yet.
func (c Cursor) IsZero() bool {
	return c.PostID == ""
}

// CursorFor builds the cursor pointing at post.
func CursorFor(p model.Post) Cursor {
	return Cursor{PostID: p.ID, CreatedAt: p.CreatedAt.UnixNano()}
}

// Store is the feed store.
type Store struct {
	mu      sync.RWMutex
	items   []model.Post
	loading bool
	err     string
	hasMore bool
	cursor  Cursor
}

// NewStore returns an empty store. hasMore starts true: nothing has been
// fetched yet, so more may exist.
func NewStore() *Store {
	return &Store{hasMore: true}
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// SetError records a load failure and clears the loading flag.
func (s *Store) SetError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = msg
	s.loading = false
}

// SetPosts replaces the whole list (initial load) and marks loading done.
func (s *Store) SetPosts(posts []model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = clonePosts(posts)
	s.loading = false
	s.err = ""
}

// AddPost prepends a freshly created post.
func (s *Store) AddPost(p model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]model.Post{p.Clone()}, s.items...)
	s.loading = false
}

// UpdatePost merges patch into the post with the same ID. Unknown IDs are ignored.
func (s *Store) UpdatePost(patch model.PostPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(patch.ID)
	if i < 0 {
		return false
	}
	s.items[i] = s.items[i].Apply(patch)
	return true
}

// DeletePost removes the post with the given ID.
func (s *Store) DeletePost(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.items[:0:0]
	for _, p := range s.items {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.items = kept
}

// LoadMorePosts appends the next page and replaces the pagination state.
func (s *Store) LoadMorePosts(posts []model.Post, cursor Cursor, hasMore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, clonePosts(posts)...)
	s.cursor = cursor
	s.hasMore = hasMore
	s.loading = false
}

// IncrementLikes adds one like to the post.
func (s *Store) IncrementLikes(id string) {
	s.mutate(id, func(p *model.Post) { p.Likes++ })
}

// DecrementLikes removes one like, never going below zero.
func (s *Store) DecrementLikes(id string) {
	s.mutate(id, func(p *model.Post) {
		if p.Likes > 0 {
			p.Likes--
		}
	})
}

// IncrementComments adds one to the comment counter.
func (s *Store) IncrementComments(id string) {
	s.mutate(id, func(p *model.Post) { p.Comments++ })
}

// IncrementEnrollments adds one to the enrollment counter.
func (s *Store) IncrementEnrollments(id string) {
	s.mutate(id, func(p *model.Post) { p.Enrollments++ })
}

// ClearPosts resets the store to its initial state.
func (s *Store) ClearPosts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.loading = false
	s.err = ""
	s.hasMore = true
	s.cursor = Cursor{}
}

// Posts returns a copy of the list, most recent first.
func (s *Store) Posts() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.items)
}

// Get returns a copy of one post.
func (s *Store) Get(id string) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.Post{}, false
	}
	return s.items[i].Clone(), true
}

// ByOwner returns the posts of one tuition owner, in feed order.
func (s *Store) ByOwner(ownerID string) []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Post
	for _, p := range s.items {
		if p.OwnerID == ownerID {
			out = append(out, p.Clone())
		}
	}
	return out
}

// Len returns the number of posts held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// HasMore reports whether another page may exist.
func (s *Store) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// Cursor returns the pagination cursor.
func (s *Store) Cursor() Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Loading reports the loading flag.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last recorded error message.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) mutate(id string, fn func(*model.Post)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		fn(&s.items[i])
	}
}

// indexOf must be called with the lock held.
func (s *Store) indexOf(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func clonePosts(posts []model.Post) []model.Post {
	if posts == nil {
		return nil
	}
	out := make([]model.Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}
