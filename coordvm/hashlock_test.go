// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"crypto/sha256"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
)

func TestComputeSecretHash(t *testing.T) {
	assert := assert.New(t)

	secret := []byte("the preimage")
	want := ids.ID(sha256.Sum256(secret))
	assert.Equal(want, ComputeSecretHash(secret))

	// the full digest is the commitment; nothing is truncated
	assert.NotEqual(ComputeSecretHash([]byte("a")), ComputeSecretHash([]byte("b")))
}

func TestVerifySecret(t *testing.T) {
	assert := assert.New(t)

	secret := []byte("the preimage")
	commitment := ComputeSecretHash(secret)

	assert.NoError(verifySecret(secret, commitment))
	assert.ErrorIs(verifySecret(nil, commitment), errEmptySecret)
	assert.ErrorIs(verifySecret([]byte{}, commitment), errEmptySecret)
	assert.ErrorIs(verifySecret(make([]byte, MaxSecretLen+1), commitment), errSecretTooLong)
	assert.ErrorIs(verifySecret([]byte("wrong"), commitment), errInvalidSecret)

	// boundary length is accepted
	long := make([]byte, MaxSecretLen)
	assert.NoError(verifySecret(long, ComputeSecretHash(long)))
}
