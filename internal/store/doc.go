// Package store provides persistent run transcripts using SQLite.
//
// # Architecture
//
// The Store interface has two implementations: SQLiteStore writes runs
// and their message transcripts to a database file, NopStore discards
// everything for deployments that opt out of persistence.
//
// Transcripts are write-only audit data. A run appends its messages as
// it goes but never reads previous transcripts back into its history;
// every run starts from its notification alone.
//
// # Schema
//
// Two tables: runs (one row per notification run, with status and final
// answer) and transcript_messages (ordered history rows keyed by run).
// The schema is created automatically on open.
package store
