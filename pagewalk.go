// Package pagewalk walks multi-page content listings (search results,
// galleries, feeds) without manual intervention. For each page it decides how
// more content is reached (a next button, a computed URL, scrolling, or an
// intercepted API cursor), carries the navigation out, and stops when the
// content starts repeating.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., rod/, goquery/, sqlite/).
package pagewalk
