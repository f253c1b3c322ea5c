package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
	"github.com/toptuitions/toptuitions/internal/repository"
)

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestCreatePost(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "o@example.com", model.RoleTuitionOwner)

	post := &model.Post{
		OwnerID: owner.ID,
		Content: "Results are out",
		Images:  []string{"/uploads/posts/x/1_a.png", "/uploads/posts/x/2_b.png"},
		Likes:   99, // ignored: counters start at zero
	}
	if err := db.CreatePost(context.Background(), post); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if post.ID == "" || post.CreatedAt.IsZero() {
		t.Fatalf("CreatePost() did not fill ID/CreatedAt: %+v", post)
	}

	got, err := db.GetPost(context.Background(), post.ID)
	if err != nil {
		t.Fatalf("GetPost() error = %v", err)
	}
	if got.Likes != 0 {
		t.Errorf("Likes = %d, want 0", got.Likes)
	}
	if len(got.Images) != 2 || got.Images[1] != "/uploads/posts/x/2_b.png" {
		t.Errorf("Images = %v", got.Images)
	}
}

func TestCreatePost_NoImagesIsEmptySlice(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "o@example.com", model.RoleTuitionOwner)
	post := createTestPost(t, db, owner.ID, 0, base)

	got, _ := db.GetPost(context.Background(), post.ID)
	if got.Images == nil {
		t.Error("Images should be an empty slice, not nil")
	}
}

func TestCreatePost_UnknownOwner(t *testing.T) {
	db := newTestDB(t)
	err := db.CreatePost(context.Background(), &model.Post{OwnerID: "ghost", Content: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreatePost() error = %v, want ErrNotFound", err)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetPost(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetPost() error = %v, want ErrNotFound", err)
	}
}

func TestListPosts_NewestFirstWithCursor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "o@example.com", model.RoleTuitionOwner)

	// Five posts, the last two sharing a timestamp.
	var ids []string
	for i, at := range []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute), base.Add(3 * time.Minute), base.Add(3 * time.Minute)} {
		p := createTestPost(t, db, owner.ID, i, at)
		ids = append(ids, p.ID)
	}

	var seen []string
	var before *repository.PostKey
	for page := 0; page < 5; page++ {
		posts, err := db.ListPosts(ctx, repository.PageOptions{Limit: 2, Before: before})
		if err != nil {
			t.Fatalf("ListPosts() page %d error = %v", page, err)
		}
		if len(posts) == 0 {
			break
		}
		for _, p := range posts {
			seen = append(seen, p.ID)
		}
		last := posts[len(posts)-1]
		before = &repository.PostKey{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	if len(seen) != 5 {
		t.Fatalf("paged through %d posts, want 5 (%v)", len(seen), seen)
	}
	unique := make(map[string]bool)
	for _, id := range seen {
		unique[id] = true
	}
	if len(unique) != 5 {
		t.Errorf("a post appeared on two pages: %v", seen)
	}
	if seen[4] != ids[0] {
		t.Errorf("oldest post should come last, got %v", seen)
	}
}

func TestListPosts_LimitClamp(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "o@example.com", model.RoleTuitionOwner)
	for i := 0; i < defaultPageSize+3; i++ {
		createTestPost(t, db, owner.ID, 0, base.Add(time.Duration(i)*time.Second))
	}

	posts, err := db.ListPosts(context.Background(), repository.PageOptions{})
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}
	if len(posts) != defaultPageSize {
		t.Errorf("default page = %d posts, want %d", len(posts), defaultPageSize)
	}
}

func TestListPostsByOwnerAndTuition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestUser(t, db, "a@example.com", model.RoleTuitionOwner)
	b := createTestUser(t, db, "b@example.com", model.RoleTuitionOwner)

	createTestPost(t, db, a.ID, 5, base)
	newest := createTestPost(t, db, a.ID, 5, base.Add(time.Hour))
	createTestPost(t, db, b.ID, 6, base)

	mine, err := db.ListPostsByOwner(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListPostsByOwner() error = %v", err)
	}
	if len(mine) != 2 || mine[0].ID != newest.ID {
		t.Errorf("ListPostsByOwner() = %d posts, first %q", len(mine), mine[0].ID)
	}

	linked, err := db.ListPostsByTuition(ctx, 5, 1)
	if err != nil {
		t.Fatalf("ListPostsByTuition() error = %v", err)
	}
	if len(linked) != 1 || linked[0].ID != newest.ID {
		t.Errorf("ListPostsByTuition(5, 1) = %+v", linked)
	}
}

func TestUpdatePost(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "o@example.com", model.RoleTuitionOwner)
	post := createTestPost(t, db, owner.ID, 0, base)

	post.Content = "Edited"
	post.Images = []string{"/uploads/posts/o/new.png"}
	post.Likes = 50 // must not be written
	if err := db.UpdatePost(ctx, post); err != nil {
		t.Fatalf("UpdatePost() error = %v", err)
	}

	got, _ := db.GetPost(ctx, post.ID)
	if got.Content != "Edited" || len(got.Images) != 1 {
		t.Errorf("UpdatePost() not persisted: %+v", got)
	}
	if got.Likes != 0 {
		t.Errorf("UpdatePost() wrote counters: likes = %d", got.Likes)
	}

	if err := db.UpdatePost(ctx, &model.Post{ID: "nope"}); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePost(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDeletePost_CascadesActivity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "o@example.com", model.RoleTuitionOwner)
	student := createTestUser(t, db, "s@example.com", model.RoleStudent)
	post := createTestPost(t, db, owner.ID, 0, base)

	if _, err := db.Like(ctx, student.ID, post.ID); err != nil {
		t.Fatalf("Like() error = %v", err)
	}
	if err := db.AddComment(ctx, &model.Comment{PostID: post.ID, UserID: student.ID, Text: "hi"}); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	if err := db.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}

	liked, _ := db.LikedPostIDs(ctx, student.ID)
	if len(liked) != 0 {
		t.Errorf("likes survived post deletion: %v", liked)
	}
	comments, _ := db.CommentIDsByUser(ctx, student.ID)
	if len(comments) != 0 {
		t.Errorf("comments survived post deletion: %v", comments)
	}

	if err := db.DeletePost(ctx, post.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeletePost() error = %v, want ErrNotFound", err)
	}
}
