// Package journal persists a record of every bootstrap attempt in SQLite.
//
// The journal is diagnostic only: the orchestrator never reads it back to
// decide what to do, and a journal that cannot be opened disables recording
// without failing the bootstrap. The schema is versioned; a database written
// by a different version is rejected with ErrSchemaMismatch and must be
// cleared with `ignite history clear` or deleted.
package journal
