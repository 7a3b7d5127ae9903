// Package main (cmd/httpserver) runs the time-locked token vault server.
//
// The server loads an environment (built-in mainnet or devnet, or a YAML file),
// opens the record store chain given by --store, sets up the token and native
// ledgers, and serves the vault API with metrics and health endpoints.
//
// With --ledger=sqlite and a sqlite:// store on the same database file, ledger
// transfers and the vault record write of an operation commit in a single
// transaction.
//
// Example usage:
//
//	httpserver --env devnet --store sqlite://vault.db --ledger sqlite --ledger-db vault.db
//
//	httpserver --env-file staging.yaml \
//	  --store postgres://vault:secret@db:5432/vault \
//	  --store s3://backups/vaults?region=us-east-1 \
//	  --ledger memory
package main
