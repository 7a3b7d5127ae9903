/*
Package httpserver serves the vault API.

Server wires the chi router, request logging, the health endpoints and the
Prometheus metrics server. Handler translates HTTP requests into vault
operations: it decodes the body, verifies the owner's signature and its
issued_at window, runs the operation on a vault.Processor and maps failures
onto HTTP status codes.

# Status codes

  - 401: MissingSignature, including stale or forged signatures
  - 404: VaultNotFound
  - 409: AlreadyInitialized, NotLocked, LockNotMatured
  - 422: TransferFailure, ArithmeticOverflow
  - 400: AddressMismatch, NotAllowListed, InvalidAccountOwnership, MalformedRequest
  - 503: record store unavailable

# Health

  - /livez always reports alive
  - /readyz reports ready until /drain is called, and again after /undrain
*/
package httpserver
