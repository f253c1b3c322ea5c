package feed

import (
	"fmt"
	"sort"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
)

// Filter narrows the feed.
type Filter string

const (
	FilterAll      Filter = "all"
	FilterEnrolled Filter = "enrolled" // posts from tuitions the student joined
	FilterPopular  Filter = "popular"  // posts with at least PopularMinLikes likes
)

// Order sorts the feed.
type Order string

const (
	OrderRecent  Order = "recent"
	OrderPopular Order = "popular"
)

// PopularMinLikes is the like count from which a post counts as popular.
const PopularMinLikes = 10

// View is the feed page state.
type View struct {
	Filter Filter
	Order  Order
	// Enrolled holds the student's enrolled tuition IDs; used by FilterEnrolled.
	Enrolled map[int]bool
}

// ParseView validates the raw filter/sort query values. Empty means default.
func ParseView(filter, order string) (View, error) {
	v := View{Filter: FilterAll, Order: OrderRecent}
	switch Filter(filter) {
	case "", FilterAll:
	case FilterEnrolled, FilterPopular:
		v.Filter = Filter(filter)
	default:
		return View{}, apperror.ValidationFailed("filter",
			fmt.Sprintf("unknown filter %q (want all, enrolled or popular)", filter))
	}
	switch Order(order) {
	case "", OrderRecent:
	case OrderPopular:
		v.Order = OrderPopular
	default:
		return View{}, apperror.ValidationFailed("sort",
			fmt.Sprintf("unknown sort %q (want recent or popular)", order))
	}
	return v, nil
}

// Apply returns a new slice with the view applied; posts is not modified.
// posts is expected in feed order (most recent first).
func (v View) Apply(posts []model.Post) []model.Post {
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		switch v.Filter {
		case FilterEnrolled:
			if p.TuitionID == 0 || !v.Enrolled[p.TuitionID] {
				continue
			}
		case FilterPopular:
			if p.Likes < PopularMinLikes {
				continue
			}
		}
		out = append(out, p.Clone())
	}

	if v.Order == OrderPopular {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Likes > out[j].Likes })
	} else {
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out
}
