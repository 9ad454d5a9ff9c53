// Package storage provides persistence backends for budget configurations
// and their field-level change history.
//
// Two implementations are provided:
//
//   - MemoryBackend: in-memory storage for tests and ephemeral deployments
//   - SQLiteBackend: durable single-instance storage using WAL mode
//
// Uniqueness invariants (account code, one config per org unit, one config
// per payer) are enforced by the backends so every caller sees the same
// errors regardless of implementation.
package storage
