package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
)

func newTestEnrollmentService(db *fakeDB) *EnrollmentService {
	return NewEnrollmentService(db, db, db, testCatalogService(), quietLogger())
}

func TestEnrollment_EnrollListUnenroll(t *testing.T) {
	db := newFakeDB()
	svc := newTestEnrollmentService(db)
	ctx := context.Background()

	if created, err := svc.Enroll(ctx, "s1", 5); err != nil || !created {
		t.Fatalf("Enroll() = %v, %v; want true", created, err)
	}
	if created, err := svc.Enroll(ctx, "s1", 5); err != nil || created {
		t.Fatalf("second Enroll() = %v, %v; want false, nil", created, err)
	}
	if _, err := svc.Enroll(ctx, "s1", 12); err != nil {
		t.Fatal(err)
	}

	list, err := svc.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != 5 || list[1].ID != 12 {
		t.Fatalf("List() = %+v, want listings 5 and 12", list)
	}
	if list[0].Name == "" || list[0].EnrolledAt != time.Now().Format("2006-01-02") {
		t.Errorf("row = %+v, want catalog fields and today's date", list[0])
	}

	if removed, _ := svc.Unenroll(ctx, "s1", 5); !removed {
		t.Error("Unenroll() = false, want true")
	}
	if removed, _ := svc.Unenroll(ctx, "s1", 5); removed {
		t.Error("second Unenroll() = true, want false")
	}
}

func TestEnrollment_UnknownListing(t *testing.T) {
	svc := newTestEnrollmentService(newFakeDB())
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, "s1", 0); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Enroll(0) error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Unenroll(ctx, "s1", 101); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Unenroll(101) error = %v, want ErrNotFound", err)
	}
}

func TestEnrollment_ListSkipsVanishedListings(t *testing.T) {
	db := newFakeDB()
	svc := newTestEnrollmentService(db)
	// Written directly: the listing existed in a bigger catalog.
	db.enrolled = append(db.enrolled,
		model.Enrollment{UserID: "s1", TuitionID: 500},
		model.Enrollment{UserID: "s1", TuitionID: 1},
	)

	list, err := svc.List(context.Background(), "s1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != 1 {
		t.Errorf("List() = %+v, want only listing 1", list)
	}
}

func TestEnrollment_Activity(t *testing.T) {
	db := newFakeDB()
	svc := newTestEnrollmentService(db)
	ctx := context.Background()

	owner := createUser(t, db, &model.User{Email: "o@example.com", Role: model.RoleTuitionOwner})
	post := &model.Post{OwnerID: owner.ID, Content: "hi"}
	if err := db.CreatePost(ctx, post); err != nil {
		t.Fatal(err)
	}
	_, _ = db.Like(ctx, "s1", post.ID)
	_ = db.AddComment(ctx, &model.Comment{PostID: post.ID, UserID: "s1", Text: "nice"})
	_, _ = svc.Enroll(ctx, "s1", 9)

	st, err := svc.Activity(ctx, "s1")
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	if !st.IsEnrolled(9) || st.IsEnrolled(10) {
		t.Errorf("enrolled set = %v, want {9}", st.Enrolled.Items())
	}
	if !st.HasLiked(post.ID) {
		t.Error("HasLiked() = false for a liked post")
	}
	if st.Comments.Len() != 1 {
		t.Errorf("comments = %d, want 1", st.Comments.Len())
	}

	empty, err := svc.Activity(ctx, "nobody")
	if err != nil || empty.Enrolled.Len() != 0 || empty.Liked.Len() != 0 {
		t.Errorf("Activity(nobody) = %+v, %v; want empty sets", empty, err)
	}
}
