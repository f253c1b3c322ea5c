// Package catalog holds the in-memory directory of tuition centres.
//
// The catalog is generated once from three small tables (names, cities,
// suffixes) and is read-only afterwards, so it is safe to share between
// goroutines without locking. Every query builds a fresh slice; nothing in
// this package hands out a reference to the backing array.
package catalog

import (
	"math"
	"math/rand"
	"sort"

	"github.com/toptuitions/toptuitions/internal/model"
)

// DefaultSize is the number of records the directory ships with.
const DefaultSize = 1000

var baseNames = []string{
	"FIITJEE", "Allen", "Aakash", "Resonance", "Vibrant", "Bansal", "Narayana",
	"PACE", "Motion", "Rao IIT", "Vidyamandir", "Sri Chaitanya", "Brilliant",
	"Super 30", "Drishti IAS", "Vision IAS", "Vajiram", "Unacademy",
	"Physics Wallah", "Vedantu", "Byju's", "Mahesh Tutorials", "Lakshya",
	"Prime", "Elite", "Quantum", "Target Point", "Success Forum",
}

var cities = []string{
	"Kota", "Delhi", "Mumbai", "Pune", "Bangalore", "Hyderabad", "Chennai",
	"Jaipur", "Lucknow", "Patna", "Ahmedabad", "Indore", "Bhopal", "Nagpur",
	"Online",
}

// The empty suffix is a valid draw: only some of the "every 9th" records
// actually get a decorated name.
var suffixes = []string{
	"", " Prime", " Elite", " Pro", " Advanced", " Foundation", " Plus",
	" Pinnacle", " Junior",
}

const (
	cityBlock   = 30 // consecutive records sharing a city
	suffixEvery = 9
	minRating   = 4.1
	ratingSpan  = 0.9
)

// Generate builds size records deterministically from seed.
//
// Record i (0-based) gets ID i+1, base name i%28, city (i/30)%15 and, when
// i%9 == 0, a suffix drawn from the suffix table. Ratings are drawn
// uniformly from [4.1, 5.0) and rounded to one decimal (so 5.0 is reachable).
// The same seed always yields the same catalog.
func Generate(size int, seed int64) []model.TuitionRecord {
	if size < 0 {
		size = 0
	}
	rng := rand.New(rand.NewSource(seed))

	records := make([]model.TuitionRecord, size)
	for i := range records {
		suffix := ""
		if i%suffixEvery == 0 {
			suffix = suffixes[rng.Intn(len(suffixes))]
		}
		records[i] = model.TuitionRecord{
			ID:       i + 1,
			Name:     baseNames[i%len(baseNames)] + suffix,
			Location: cities[(i/cityBlock)%len(cities)],
			Rating:   round1(minRating + rng.Float64()*ratingSpan),
		}
	}
	return records
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// Catalog is the immutable, generated directory.
type Catalog struct {
	records   []model.TuitionRecord
	images    *ImageSet
	locations []string
}

// New generates a catalog of the given size and seed. images may be nil,
// in which case records carry no image path.
func New(size int, seed int64, images *ImageSet) *Catalog {
	records := Generate(size, seed)

	seen := make(map[string]bool, len(cities))
	locations := make([]string, 0, len(cities))
	for i := range records {
		if images != nil {
			records[i].Image = images.For(records[i].ID)
		}
		if loc := records[i].Location; !seen[loc] {
			seen[loc] = true
			locations = append(locations, loc)
		}
	}

	return &Catalog{records: records, images: images, locations: locations}
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.records)
}

// All returns a copy of every record in ID order.
func (c *Catalog) All() []model.TuitionRecord {
	out := make([]model.TuitionRecord, len(c.records))
	copy(out, c.records)
	return out
}

// ByID looks up a record. IDs are 1-based and sequential, so this is an index.
func (c *Catalog) ByID(id int) (model.TuitionRecord, bool) {
	if id < 1 || id > len(c.records) {
		return model.TuitionRecord{}, false
	}
	return c.records[id-1], true
}

// Locations lists the distinct cities in first-seen order.
func (c *Catalog) Locations() []string {
	return append([]string(nil), c.locations...)
}

// Featured returns the n best-rated records (ties keep ID order).
func (c *Catalog) Featured(n int) []model.TuitionRecord {
	out := c.All()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
