/*
Package api defines the wire types shared by the vault HTTP server and its clients.

# Endpoints

  - POST /api/vault/process: apply a signed operation (ProcessRequest)
  - GET /api/vault/{owner}: read the owner's vault record (VaultResponse)
  - GET /api/vault/{owner}/quote: early-exit fee of a locked vault (QuoteResponse)
  - GET /api/environment: the active environment (EnvironmentResponse)
  - POST /api/devnet/airdrop: credit development funds (AirdropRequest)

# Request signing

A ProcessRequest carries the hex-encoded operation payload, the accounts it
acts on, the unix time it was issued at, and an ed25519 signature by the owner
over vault.RequestDigest(data, accounts, issued_at). The server rejects
requests whose issued_at is outside its signature window.

Failures are reported as ErrorResponse with a stable code such as
"LockNotMatured" or "NotAllowListed".
*/
package api
