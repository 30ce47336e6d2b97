// Package dedupe provides notification deduplication using a time-based
// cache so each mail message triggers at most one run within a
// configurable window.
package dedupe
