// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data. Every layer (catalog, services,
// repositories, handlers) passes these types around; none of them carry behaviour
// beyond small helpers.
package model

// TuitionRecord is one coaching centre listed in the catalog.
//
// Records are generated once at startup and never modified afterwards.
// ID is sequential (1..N) and is the only key used for image lookup and for
// the /tuition/{id} route.
type TuitionRecord struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Rating   float64 `json:"rating"` // in [4.1, 5.0], one decimal
	Image    string  `json:"image,omitempty"`
}
