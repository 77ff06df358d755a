// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
)

// testProofFor builds a two-leaf tree over [txHash] and a filler leaf and
// returns a proof whose audit path checks out against the derived root.
func testProofFor(txHash ids.ID, blockTimestamp uint64) *Proof {
	sibling := merkleLeaf(ids.ID{0xff})
	root := merkleInterior(merkleLeaf(txHash), sibling)
	return &Proof{
		SourceChain:    remoteChainID,
		TargetChain:    localChainID,
		TxHash:         txHash,
		MerkleRoot:     root,
		MerklePath:     []ProofStep{{Sibling: sibling, Left: false}},
		Signature:      make([]byte, SignatureLen),
		BlockTimestamp: blockTimestamp,
	}
}

func submitTestProof(t *testing.T, c *Coordinator) uint64 {
	t.Helper()

	proof := testProofFor(ids.ID{0x42}, c.clock.Unix())
	proofID, err := c.SubmitProof(testInitiator, SubmitProofArgs{
		SourceChain:    proof.SourceChain,
		TargetChain:    proof.TargetChain,
		TxHash:         proof.TxHash,
		MerkleRoot:     proof.MerkleRoot,
		MerklePath:     proof.MerklePath,
		Signature:      proof.Signature,
		BlockTimestamp: proof.BlockTimestamp,
	})
	assert.NoError(t, err)
	return proofID
}

func TestVerifyProofVerdicts(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	source := cfg.Chains[1] // remote
	target := cfg.Chains[0] // home
	now := testBaseTime
	proof := testProofFor(ids.ID{0x42}, now)

	assert.Equal(VerdictValid, VerifyProof(proof, &source, &target, cfg.TrustThreshold, now))

	// unknown or inactive chains
	assert.Equal(VerdictInvalid, VerifyProof(proof, nil, &target, cfg.TrustThreshold, now))
	assert.Equal(VerdictInvalid, VerifyProof(proof, &source, nil, cfg.TrustThreshold, now))
	inactive := source
	inactive.Active = false
	assert.Equal(VerdictInvalid, VerifyProof(proof, &inactive, &target, cfg.TrustThreshold, now))

	// signature must be exactly SignatureLen bytes
	badSig := *proof
	badSig.Signature = make([]byte, SignatureLen-1)
	assert.Equal(VerdictInvalid, VerifyProof(&badSig, &source, &target, cfg.TrustThreshold, now))

	// a broken audit path is malformed, even with a good signature
	badPath := *proof
	badPath.MerkleRoot = ids.ID{0xde, 0xad}
	assert.Equal(VerdictMalformedProof, VerifyProof(&badPath, &source, &target, cfg.TrustThreshold, now))

	// older than MinConfirmations * BlockTime is stale
	maxAge := uint64(source.MinConfirmations) * source.BlockTime
	assert.Equal(VerdictValid, VerifyProof(proof, &source, &target, cfg.TrustThreshold, now+maxAge))
	assert.Equal(VerdictExpired, VerifyProof(proof, &source, &target, cfg.TrustThreshold, now+maxAge+1))

	// either end below the threshold fails the composite check
	weak := source
	weak.TrustLevel = cfg.TrustThreshold - 1
	assert.Equal(VerdictInsufficientConfirmations, VerifyProof(proof, &weak, &target, cfg.TrustThreshold, now))
	weakTarget := target
	weakTarget.TrustLevel = cfg.TrustThreshold - 1
	assert.Equal(VerdictInsufficientConfirmations, VerifyProof(proof, &source, &weakTarget, cfg.TrustThreshold, now))
}

func TestVerifyProofDeterministic(t *testing.T) {
	assert := assert.New(t)

	cfg := testConfig()
	source := cfg.Chains[1]
	target := cfg.Chains[0]
	proof := testProofFor(ids.ID{0x42}, testBaseTime)

	first := VerifyProof(proof, &source, &target, cfg.TrustThreshold, testBaseTime)
	for i := 0; i < 10; i++ {
		assert.Equal(first, VerifyProof(proof, &source, &target, cfg.TrustThreshold, testBaseTime))
	}
}

func TestSubmitProofValidation(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	_, err := c.SubmitProof(testInitiator, SubmitProofArgs{
		SourceChain: 99,
		TargetChain: localChainID,
	})
	assert.ErrorIs(err, errChainNotFound)

	_, err = c.SubmitProof(testInitiator, SubmitProofArgs{
		SourceChain: remoteChainID,
		TargetChain: 99,
	})
	assert.ErrorIs(err, errChainNotFound)

	count, err := c.ProofCount()
	assert.NoError(err)
	assert.Equal(uint64(0), count)
}

func TestRecordVerification(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	proofID := submitTestProof(t, c)
	assert.Equal(uint64(1), proofID)

	// only trusted verifiers may record
	_, err := c.RecordVerification(testVerifier, proofID)
	assert.ErrorIs(err, errNotVerifier)

	assert.NoError(c.AddTrustedVerifier(testAuthority, testVerifier))

	verdict, err := c.RecordVerification(testVerifier, proofID)
	assert.NoError(err)
	assert.Equal(VerdictValid, verdict)

	verified, err := c.GetVerification(proofID)
	assert.NoError(err)
	assert.Equal(VerdictValid, verified.Verdict)
	assert.Equal(testVerifier, verified.Verifier)
	assert.Equal(c.clock.Unix(), verified.VerifiedAt)

	// verdicts are recorded at most once
	_, err = c.RecordVerification(testVerifier, proofID)
	assert.ErrorIs(err, errVerdictRecorded)

	ok, err := c.IsFullyVerified(proofID)
	assert.NoError(err)
	assert.True(ok)

	_, err = c.RecordVerification(testVerifier, 99)
	assert.ErrorIs(err, errProofNotFound)
}

func TestIsFullyVerifiedTracksTrust(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	proofID := submitTestProof(t, c)
	assert.NoError(c.AddTrustedVerifier(testAuthority, testVerifier))
	_, err := c.RecordVerification(testVerifier, proofID)
	assert.NoError(err)

	ok, err := c.IsFullyVerified(proofID)
	assert.NoError(err)
	assert.True(ok)

	// demoting a chain below the threshold retracts composite trust even
	// though the recorded verdict stands
	demoted := testConfig().Chains[1]
	demoted.TrustLevel = 10
	assert.NoError(c.AddChainConfig(testAuthority, demoted))

	ok, err = c.IsFullyVerified(proofID)
	assert.NoError(err)
	assert.False(ok)

	verified, err := c.GetVerification(proofID)
	assert.NoError(err)
	assert.Equal(VerdictValid, verified.Verdict)

	// an unverified proof is simply not fully verified
	other := submitTestProof(t, c)
	ok, err = c.IsFullyVerified(other)
	assert.NoError(err)
	assert.False(ok)
}

func TestBatchVerify(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)
	assert.NoError(c.AddTrustedVerifier(testAuthority, testVerifier))

	first := submitTestProof(t, c)
	second := submitTestProof(t, c)

	results, err := c.BatchVerify(testVerifier, []uint64{first, 99, second})
	assert.NoError(err)
	assert.Len(results, 3)

	assert.True(results[0].Found)
	assert.Equal(VerdictValid, results[0].Verdict)
	assert.False(results[1].Found)
	assert.True(results[2].Found)
	assert.Equal(VerdictValid, results[2].Verdict)

	// the batch recorded both verdicts
	_, err = c.GetVerification(first)
	assert.NoError(err)
	_, err = c.GetVerification(second)
	assert.NoError(err)

	_, err = c.BatchVerify(testStranger, []uint64{first})
	assert.ErrorIs(err, errNotVerifier)
}

func TestOverrideVerdict(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)
	assert.NoError(c.AddTrustedVerifier(testAuthority, testVerifier))

	proofID := submitTestProof(t, c)

	// nothing recorded yet
	assert.ErrorIs(c.OverrideVerdict(testAuthority, proofID, VerdictInvalid), errVerificationNotFound)

	_, err := c.RecordVerification(testVerifier, proofID)
	assert.NoError(err)

	assert.ErrorIs(c.OverrideVerdict(testVerifier, proofID, VerdictInvalid), errUnauthorized)
	assert.NoError(c.OverrideVerdict(testAuthority, proofID, VerdictInvalid))

	verified, err := c.GetVerification(proofID)
	assert.NoError(err)
	assert.Equal(VerdictInvalid, verified.Verdict)
	assert.Equal(testAuthority, verified.Verifier)

	ok, err := c.IsFullyVerified(proofID)
	assert.NoError(err)
	assert.False(ok)
}

func TestParseVerdict(t *testing.T) {
	assert := assert.New(t)

	for _, v := range []Verdict{
		VerdictPending,
		VerdictValid,
		VerdictInvalid,
		VerdictExpired,
		VerdictInsufficientConfirmations,
		VerdictMalformedProof,
	} {
		parsed, err := ParseVerdict(v.String())
		assert.NoError(err)
		assert.Equal(v, parsed)
	}

	_, err := ParseVerdict("NotAVerdict")
	assert.Error(err)
}
