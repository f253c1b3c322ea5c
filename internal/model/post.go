package model

import "time"

// Post is an update published by a tuition owner, shown in the feed.
//
// Likes, Comments and Enrollments are denormalised counters kept on the
// post row; Likes never goes below zero.
type Post struct {
	ID          string    `json:"id"`
	TuitionID   int       `json:"tuitionId"` // catalog id the owner is linked to, 0 if none
	TuitionName string    `json:"tuitionName"`
	OwnerID     string    `json:"ownerId"`
	OwnerPhoto  string    `json:"ownerPhoto,omitempty"`
	Content     string    `json:"content"`
	Images      []string  `json:"images"`
	Likes       int       `json:"likes"`
	Comments    int       `json:"comments"`
	Enrollments int       `json:"enrollments"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PostPatch is a partial post update, merged by ID. Nil fields are untouched.
type PostPatch struct {
	ID          string    `json:"id"`
	Content     *string   `json:"content,omitempty" validate:"omitempty,min=1,max=1000"`
	Images      *[]string `json:"images,omitempty"  validate:"omitempty,max=4"`
	TuitionName *string   `json:"tuitionName,omitempty"`
	OwnerPhoto  *string   `json:"ownerPhoto,omitempty"`
}

// Apply returns p with the patch merged in.
func (p Post) Apply(patch PostPatch) Post {
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Images != nil {
		p.Images = append([]string(nil), (*patch.Images)...)
	}
	if patch.TuitionName != nil {
		p.TuitionName = *patch.TuitionName
	}
	if patch.OwnerPhoto != nil {
		p.OwnerPhoto = *patch.OwnerPhoto
	}
	return p
}

// Clone returns a deep copy (Images is the only reference field).
func (p Post) Clone() Post {
	p.Images = append([]string(nil), p.Images...)
	return p
}

// Comment is a student's reply under a post.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"postId"`
	UserID     string    `json:"userId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Enrollment records that a student joined a catalog tuition.
type Enrollment struct {
	UserID    string    `json:"userId"`
	TuitionID int       `json:"tuitionId"`
	CreatedAt time.Time `json:"createdAt"`
}
