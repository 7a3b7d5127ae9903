// Package interfaces defines the core interfaces and types for the timelock vault system.
//
// This package provides the contracts between the vault state machine and its
// collaborators without including implementation details:
//
//   - Ledger / TokenLedger: move asset balances between accounts
//   - Transactor: run a unit of work that commits or rolls back as a whole
//   - RecordStore / RecordStoreFactory: persist vault records keyed by derived address
//   - Clock: wall-clock source for deposit timestamps and fee quotes
//
// # Type Definitions
//
//   - Address: a 32-byte account, program or record identifier in base58 text form
//   - Vault: the per-owner escrow record
//
// # Error Types
//
// Vault operations fail with one of the sentinel errors in errors.go; ErrorCode
// maps any wrapped failure to its stable tag for transport layers.
package interfaces
