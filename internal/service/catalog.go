package service

import (
	"strconv"

	"github.com/toptuitions/toptuitions/internal/apperror"
	"github.com/toptuitions/toptuitions/internal/catalog"
	"github.com/toptuitions/toptuitions/internal/model"
)

// FeaturedCount is how many listings the home page shows.
const FeaturedCount = 6

// CatalogService answers listing queries. The catalog is immutable, so no
// locking is needed.
type CatalogService struct {
	catalog *catalog.Catalog
}

func NewCatalogService(c *catalog.Catalog) *CatalogService {
	return &CatalogService{catalog: c}
}

// CatalogResult is one listing page.
type CatalogResult struct {
	Query     catalog.Query         `json:"query"`
	Total     int                   `json:"total"`
	Tuitions  []model.TuitionRecord `json:"tuitions"`
	Locations []string              `json:"locations"`
}

// Search runs the listing query built from raw query-string values.
func (s *CatalogService) Search(name, location, sort string) (*CatalogResult, error) {
	key, err := catalog.ParseSort(sort)
	if err != nil {
		return nil, err
	}
	if location == "" {
		location = catalog.AllLocations
	}
	q := catalog.Query{Search: name, Location: location, Sort: key}
	records := s.catalog.Search(q)
	return &CatalogResult{
		Query:     q,
		Total:     len(records),
		Tuitions:  records,
		Locations: s.Locations(),
	}, nil
}

// Get returns the listing with the given ID, or apperror.ErrNotFound.
func (s *CatalogService) Get(id int) (model.TuitionRecord, error) {
	rec, ok := s.catalog.ByID(id)
	if !ok {
		return model.TuitionRecord{}, apperror.NotFound("tuition", strconv.Itoa(id))
	}
	return rec, nil
}

// ParseID converts a path segment into a listing ID. Non-numeric input is a
// not-found, same as an unknown number.
func (s *CatalogService) ParseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.NotFound("tuition", raw)
	}
	if _, err := s.Get(id); err != nil {
		return 0, err
	}
	return id, nil
}

// Locations lists the distinct cities, prefixed with the "All" choice.
func (s *CatalogService) Locations() []string {
	return append([]string{catalog.AllLocations}, s.catalog.Locations()...)
}

func (s *CatalogService) Featured() []model.TuitionRecord {
	return s.catalog.Featured(FeaturedCount)
}

func (s *CatalogService) Len() int {
	return s.catalog.Len()
}
