// Package database provides SQLite-based storage for crawl results.
//
// This package implements the ResultDB, which stores:
//   - One row per crawl run with its parameters and summary
//   - The word counts of every run
//   - The visited and failed URLs of every run
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
// 4. WAL mode provides good concurrent read performance
//
// Word counts are stored as rows rather than a JSON blob so that history
// queries can compute totals in SQL.
package database
