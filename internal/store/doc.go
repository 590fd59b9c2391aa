// Package store implements the flat-file persistence for inboxtasks.
//
// Three JSON files live under the data directory:
//   - processed.json: message id -> processed timestamp, the idempotency
//     record that prevents an email from being turned into a task twice
//   - tasks_history.json / events_history.json: what was created, when,
//     from which email
//   - settings.json: persisted fetch defaults for the web UI
//
// All writes go through a temp-file-plus-rename so readers never observe
// a partially written store. Missing and corrupt files are treated as
// empty state rather than errors; losing the dedup record only means
// some emails may be offered again, which the user can skip.
package store
