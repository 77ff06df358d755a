// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// MaxSecretLen bounds the preimage size a redeemer may submit.
const MaxSecretLen = 64

// ComputeSecretHash returns the sha256 commitment for [secret].
func ComputeSecretHash(secret []byte) ids.ID {
	return hashing.ComputeHash256Array(secret)
}

// verifySecret checks that [secret] is a well-formed preimage of
// [commitment]. The commitment is a full sha256 digest; partial or
// truncated matches are never accepted.
func verifySecret(secret []byte, commitment ids.ID) error {
	switch {
	case len(secret) == 0:
		return errEmptySecret
	case len(secret) > MaxSecretLen:
		return errSecretTooLong
	}
	if ComputeSecretHash(secret) != commitment {
		return errInvalidSecret
	}
	return nil
}
