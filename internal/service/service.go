// Package service contains the business logic of TopTuitions.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, enforces role and ownership rules, orchestrates
//	Repository      → reads and writes SQLite
//
// Services take repository interfaces, never *sqlite.DB, so the tests in
// this package run against in-memory fakes. They return apperror values and
// know nothing about HTTP.
//
// ERROR CONTRACT:
// A rule the caller broke comes back as an *apperror.AppError (validation,
// forbidden, not found, conflict); handlers map those to 4xx with the
// message shown as is. Anything else is wrapped with a "service/<name>:"
// prefix and becomes a 500 whose text is only logged.
//
// WHO MAY DO WHAT:
//
//	anyone         browse the catalog, read the feed and comments
//	signed in      edit own profile, comment
//	student        like, enroll (from a post or a listing)
//	tuition owner  create, edit and delete own posts; tuition profile fields
//
// The router enforces the role of each route; services check it again where
// a rule depends on the stored user (Create re-reads the owner's role).
package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/toptuitions/toptuitions/internal/apperror"
)

// requireText trims s and checks its length in characters (not bytes).
func requireText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperror.ValidationFailed(field, field+" is required")
	}
	if utf8.RuneCountInString(s) > max {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return s, nil
}
