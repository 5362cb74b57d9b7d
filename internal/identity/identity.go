// Package identity derives stable, non-reversible visitor identifiers.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// SaltedID hashes an anonymous id together with the daily salt into a
// fixed-length hex string. With an empty salt it degrades to hashing the
// anonymous id alone, which stays deterministic but loses the daily
// rotation. Neither input is ever logged or returned.
func SaltedID(anonymousID, salt string) string {
	sum := sha256.Sum256([]byte(anonymousID + salt))
	return hex.EncodeToString(sum[:])
}
