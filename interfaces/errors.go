package interfaces

import "errors"

// Vault operation failures. Every guard failure aborts the operation before any
// state change; callers match them with errors.Is.
var (
	// ErrMissingSignature is returned when the owner did not sign the request.
	ErrMissingSignature = errors.New("missing required signature")

	// ErrAddressMismatch is returned when a supplied address diverges from the derived one.
	ErrAddressMismatch = errors.New("derived address mismatch")

	// ErrNotAllowListed is returned when an asset or fee recipient is not valid
	// for the active environment.
	ErrNotAllowListed = errors.New("identifier not allow-listed")

	// ErrInvalidAccountOwnership is returned when a holding account is not
	// administered by the expected ledger program.
	ErrInvalidAccountOwnership = errors.New("invalid account ownership")

	// ErrAlreadyInitialized is returned when a vault record already exists for the owner.
	ErrAlreadyInitialized = errors.New("vault already initialized")

	// ErrVaultNotFound is returned when no vault record exists for the owner.
	ErrVaultNotFound = errors.New("vault not found")

	// ErrNotLocked is returned by Release and Withdraw on an unlocked vault.
	ErrNotLocked = errors.New("vault not locked")

	// ErrLockNotMatured is returned by Release before the lock duration elapsed.
	// Early exits go through Withdraw and pay the exit fee.
	ErrLockNotMatured = errors.New("lock not matured")

	// ErrArithmeticOverflow is returned when amount or fee math exceeds uint64.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrTransferFailure wraps any error reported by a ledger transfer.
	ErrTransferFailure = errors.New("transfer failure")

	// ErrMalformedRequest is returned for undecodable or invalid operation payloads.
	ErrMalformedRequest = errors.New("malformed request")
)

var errorCodes = []struct {
	err  error
	code string
}{
	// Ledger errors are wrapped verbatim, so the transfer tag takes precedence.
	{ErrTransferFailure, "TransferFailure"},
	{ErrMissingSignature, "MissingSignature"},
	{ErrAddressMismatch, "AddressMismatch"},
	{ErrNotAllowListed, "NotAllowListed"},
	{ErrInvalidAccountOwnership, "InvalidAccountOwnership"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrVaultNotFound, "VaultNotFound"},
	{ErrNotLocked, "NotLocked"},
	{ErrLockNotMatured, "LockNotMatured"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrMalformedRequest, "MalformedRequest"},
}

// ErrorCode returns the stable failure tag for err, or "Internal" when err does
// not wrap any vault error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "Internal"
}
