// Package activity tracks what a student has done: tuitions joined, posts
// liked, comments written.
package activity

// Set is an insertion-ordered membership set. Adding an existing key is a
// no-op; removing filters it out.
type Set[K comparable] struct {
	order []K
	index map[K]struct{}
}

// NewSet builds a set from keys, dropping duplicates.
func NewSet[K comparable](keys ...K) *Set[K] {
	s := &Set[K]{}
	s.Replace(keys)
	return s
}

// Add inserts k. It reports whether k was new.
func (s *Set[K]) Add(k K) bool {
	if s.index == nil {
		s.index = make(map[K]struct{})
	}
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.order = append(s.order, k)
	return true
}

// Remove deletes k. It reports whether k was present.
func (s *Set[K]) Remove(k K) bool {
	if _, ok := s.index[k]; !ok {
		return false
	}
	delete(s.index, k)
	kept := s.order[:0]
	for _, o := range s.order {
		if o != k {
			kept = append(kept, o)
		}
	}
	s.order = kept
	return true
}

// Has reports membership.
func (s *Set[K]) Has(k K) bool {
	_, ok := s.index[k]
	return ok
}

// Items returns the members in insertion order.
func (s *Set[K]) Items() []K {
	return append([]K(nil), s.order...)
}

// Len returns the number of members.
func (s *Set[K]) Len() int {
	return len(s.order)
}

// Replace swaps the whole content (bulk load).
func (s *Set[K]) Replace(keys []K) {
	s.order = nil
	s.index = make(map[K]struct{}, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
}

// Clear empties the set.
func (s *Set[K]) Clear() {
	s.order = nil
	s.index = nil
}

// Student is one student's activity.
type Student struct {
	Enrolled *Set[int]    `json:"-"`
	Liked    *Set[string] `json:"-"`
	Comments *Set[string] `json:"-"`
}

// NewStudent returns empty activity.
func NewStudent() *Student {
	return &Student{
		Enrolled: NewSet[int](),
		Liked:    NewSet[string](),
		Comments: NewSet[string](),
	}
}

// IsEnrolled reports whether the student joined tuitionID.
func (s *Student) IsEnrolled(tuitionID int) bool {
	return s.Enrolled.Has(tuitionID)
}

// HasLiked reports whether the student liked postID.
func (s *Student) HasLiked(postID string) bool {
	return s.Liked.Has(postID)
}

// EnrolledMap is the form feed.View expects.
func (s *Student) EnrolledMap() map[int]bool {
	m := make(map[int]bool, s.Enrolled.Len())
	for _, id := range s.Enrolled.Items() {
		m[id] = true
	}
	return m
}

// Clear resets everything (used on logout).
func (s *Student) Clear() {
	s.Enrolled.Clear()
	s.Liked.Clear()
	s.Comments.Clear()
}

// Snapshot is the JSON form of a student's activity.
type Snapshot struct {
	EnrolledTuitions []int    `json:"enrolledTuitions"`
	LikedPosts       []string `json:"likedPosts"`
	MyComments       []string `json:"myComments"`
}

// Snapshot copies the current state.
func (s *Student) Snapshot() Snapshot {
	return Snapshot{
		EnrolledTuitions: nonNil(s.Enrolled.Items()),
		LikedPosts:       nonNil(s.Liked.Items()),
		MyComments:       nonNil(s.Comments.Items()),
	}
}

func nonNil[K any](items []K) []K {
	if items == nil {
		return []K{}
	}
	return items
}
