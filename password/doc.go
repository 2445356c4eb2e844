// Package password provides salted one-way password hashing with argon2id.
//
// Digests use the PHC string format and embed their own cost parameters, so
// verification works across parameter upgrades and [Hasher.NeedsRehash]
// can tell when a stored digest is weaker than the current configuration.
// A digest that cannot be decoded is reported as [ErrInvalidDigest]:
// corrupted storage, not a failed verification.
package password
