/*
Package vault implements the time-locked token vault state machine.

Every owner has at most one vault, stored at an address derived from the owner
and the vault program identifier. The vault holds a single allow-listed asset in
an associated holding account controlled by the vault's derived address.

# Operations

  - Initialize creates the vault and charges the entry fee in the native asset.
    A positive amount is deposited and locked immediately.
  - Deposit adds to the locked balance and restarts the maturity clock.
  - Withdraw returns the whole balance at any time, charging an early-exit fee
    that decays linearly with the whole days elapsed.
  - Release returns the whole balance once the lock has matured.
  - Extend is accepted and has no effect.

Each operation runs its guards before touching any state, and applies its
ledger transfers and record write inside the configured transactors, so a
failure leaves no partial effect.

# Environments

An Environment selects the program identifiers, allow-lists and fee parameters.
Mainnet and Devnet are built in; ParseEnvironment overlays a YAML document on
either of them.

# Wire format

Operation payloads are a one-byte tag followed by an optional little-endian
uint64 amount. Vault records are a fixed 58-byte little-endian layout, see
EncodeVault.
*/
package vault
