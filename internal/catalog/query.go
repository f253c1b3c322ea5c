package catalog

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/model"
)

// AllLocations is the location filter value that disables location filtering.
const AllLocations = "All"

// SortKey selects the ordering of a query result.
type SortKey string

const (
	SortRating   SortKey = "rating"    // best rated first
	SortNameAsc  SortKey = "name-asc"  // A → Z
	SortNameDesc SortKey = "name-desc" // Z → A
)

// ParseSort accepts the values used by the listing page's sort dropdown.
// An empty string means the default (rating).
func ParseSort(s string) (SortKey, error) {
	switch SortKey(strings.TrimSpace(s)) {
	case "", SortRating:
		return SortRating, nil
	case SortNameAsc:
		return SortNameAsc, nil
	case SortNameDesc:
		return SortNameDesc, nil
	default:
		return "", apperror.ValidationFailed("sort",
			fmt.Sprintf("unknown sort %q (want rating, name-asc or name-desc)", s))
	}
}

// Query is the listing page state: free-text name search, one location and a sort.
type Query struct {
	Search   string  `json:"name"`
	Location string  `json:"location"`
	Sort     SortKey `json:"sort"`
}

// Search filters and sorts the catalog.
//
// The result is always a new slice, recomputed from the full catalog; the
// catalog itself is never reordered. Ties are broken by ID so that every
// ordering is total, which makes name-desc exactly the reverse of name-asc.
func (c *Catalog) Search(q Query) []model.TuitionRecord {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	location := strings.TrimSpace(q.Location)
	if location == "" {
		location = AllLocations
	}

	out := make([]model.TuitionRecord, 0, len(c.records))
	for _, t := range c.records {
		if needle != "" && !strings.Contains(strings.ToLower(t.Name), needle) {
			continue
		}
		if location != AllLocations && t.Location != location {
			continue
		}
		out = append(out, t)
	}

	sortRecords(out, q.Sort)
	return out
}

func sortRecords(records []model.TuitionRecord, key SortKey) {
	switch key {
	case SortNameAsc, SortNameDesc:
		// collate.Collator keeps internal buffers; one per call keeps Search
		// safe for concurrent use.
		col := collate.New(language.English)
		sort.Slice(records, func(i, j int) bool {
			a, b := records[i], records[j]
			if key == SortNameDesc {
				a, b = b, a
			}
			if cmp := col.CompareString(a.Name, b.Name); cmp != 0 {
				return cmp < 0
			}
			return a.ID < b.ID
		})
	default:
		sort.Slice(records, func(i, j int) bool {
			if records[i].Rating != records[j].Rating {
				return records[i].Rating > records[j].Rating
			}
			return records[i].ID < records[j].ID
		})
	}
}
