// Package storage persists vault records behind pluggable backends.
//
// Every backend implements interfaces.RecordStore: a record is the fixed-size
// encoding of a vault, keyed by the vault's derived address.
//
//   - MemoryStore for tests and throwaway devnets
//   - FileStore, one file per record
//   - S3Store for S3 and S3-compatible object stores
//   - IPFSStore in the mutable file system of an IPFS node
//   - HashiVaultStore as HashiCorp Vault KV v2 secrets
//   - SQLiteStore, sharing transactions with the SQLite ledger
//   - PostgresStore
//
// # Location URIs
//
// StoreFactory builds backends from URIs of the form
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// for example:
//
//   - memory://
//   - file:///var/lib/timelock-vault
//   - s3://bucket-name/prefix?region=us-west-2
//   - ipfs://127.0.0.1:5001/timelock-vault
//   - vault://vault.example.com:8200/secret/timelock?tls=true
//   - sqlite:///var/lib/timelock-vault/vault.db
//   - postgres://user:pass@db:5432/vaults
//
// Several locations are combined with CreateMultiStore into replicas: a write
// must reach every backend, and reads reject copies that disagree.
package storage
