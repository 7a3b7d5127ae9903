// Package ledger implements the balance-keeping collaborators of the vault
// processor.
//
// MemoryLedger keeps balances in process and journals changes for rollback.
// SQLiteLedger keeps them in the shared SQLite database so that transfers
// commit in the same transaction as the vault record. MockLedger is a testify
// mock for inducing failures.
//
// Every ledger enforces transfer authority: the transfer's Authority must
// control the source account, and an authority that is a derived address must
// carry a DerivedSigner proof.
package ledger
