// Package cryptoutils provides the address and signature primitives of the
// timelock vault.
//
// # Derived addresses
//
// A derived address is computed from a list of seeds and the identifier of
// the program that controls it:
//
//	sha256(seed_0 || ... || seed_n || programID || "ProgramDerivedAddress")
//
// A digest that decodes to a point on edwards25519 is rejected, which
// guarantees that no private key exists for a derived address. FindDerivedAddress
// appends a one-byte nonce as the last seed, starting at 255 and counting down,
// until the digest falls off the curve. Holding the seeds and the nonce is the
// only way to act on behalf of a derived address; ledgers check this with
// VerifyDerivedSigner.
//
// # Signatures
//
// Owners are ed25519 keys. Keypair signs requests and VerifySignature checks
// them against the owner's address.
package cryptoutils
