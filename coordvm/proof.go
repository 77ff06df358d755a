// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"
)

// SignatureLen is the expected length of a remote-chain attestation
// signature. The coordinator checks shape only; signature cryptography is
// the identity provider's concern.
const SignatureLen = 64

// ChainConfig is the per-chain trust policy used to gate cross-chain
// verification.
type ChainConfig struct {
	ChainID          uint32      `serialize:"true" json:"chainID"`
	Name             string      `serialize:"true" json:"name"`
	BridgeAddress    ids.ShortID `serialize:"true" json:"bridgeAddress"`
	MinConfirmations uint32      `serialize:"true" json:"minConfirmations"`
	BlockTime        uint64      `serialize:"true" json:"blockTime"`
	TrustLevel       uint32      `serialize:"true" json:"trustLevel"`
	Active           bool        `serialize:"true" json:"active"`
}

// Proof is a claim that a transaction was included in a block on a remote
// chain, carried as a merkle audit path plus an attestation signature.
type Proof struct {
	ProofID        uint64      `serialize:"true" json:"proofID"`
	SourceChain    uint32      `serialize:"true" json:"sourceChain"`
	TargetChain    uint32      `serialize:"true" json:"targetChain"`
	TxHash         ids.ID      `serialize:"true" json:"txHash"`
	MerkleRoot     ids.ID      `serialize:"true" json:"merkleRoot"`
	MerklePath     []ProofStep `serialize:"true" json:"merklePath"`
	Signature      []byte      `serialize:"true" json:"signature"`
	BlockTimestamp uint64      `serialize:"true" json:"blockTimestamp"`
	Submitter      ids.ShortID `serialize:"true" json:"submitter"`
	SubmittedAt    uint64      `serialize:"true" json:"submittedAt"`
}

// Verdict is the outcome of verifying a proof.
type Verdict uint8

const (
	VerdictPending Verdict = iota
	VerdictValid
	VerdictInvalid
	VerdictExpired
	VerdictInsufficientConfirmations
	VerdictMalformedProof
)

func (v Verdict) String() string {
	switch v {
	case VerdictPending:
		return "Pending"
	case VerdictValid:
		return "Valid"
	case VerdictInvalid:
		return "Invalid"
	case VerdictExpired:
		return "Expired"
	case VerdictInsufficientConfirmations:
		return "InsufficientConfirmations"
	case VerdictMalformedProof:
		return "MalformedProof"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(v))
	}
}

// ParseVerdict is the inverse of Verdict.String.
func ParseVerdict(s string) (Verdict, error) {
	switch s {
	case "Pending":
		return VerdictPending, nil
	case "Valid":
		return VerdictValid, nil
	case "Invalid":
		return VerdictInvalid, nil
	case "Expired":
		return VerdictExpired, nil
	case "InsufficientConfirmations":
		return VerdictInsufficientConfirmations, nil
	case "MalformedProof":
		return VerdictMalformedProof, nil
	default:
		return VerdictPending, fmt.Errorf("unknown verdict %q", s)
	}
}

// VerifiedProof binds a proof to its recorded verdict. Immutable once
// written, except through OverrideVerdict.
type VerifiedProof struct {
	ProofID    uint64      `serialize:"true" json:"proofID"`
	Verdict    Verdict     `serialize:"true" json:"verdict"`
	Verifier   ids.ShortID `serialize:"true" json:"verifier"`
	VerifiedAt uint64      `serialize:"true" json:"verifiedAt"`
}

// SubmitProofArgs carries the caller-supplied fields of a proof.
type SubmitProofArgs struct {
	SourceChain    uint32
	TargetChain    uint32
	TxHash         ids.ID
	MerkleRoot     ids.ID
	MerklePath     []ProofStep
	Signature      []byte
	BlockTimestamp uint64
}

// SubmitProof stores remote-chain evidence for later verification. Both
// chains must be configured; the evidence itself is not judged here.
func (c *Coordinator) SubmitProof(caller ids.ShortID, args SubmitProofArgs) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return 0, err
	}
	id, err := c.submitProof(caller, args)
	if err != nil {
		c.state.Abort()
		return 0, err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return 0, err
	}
	return id, nil
}

func (c *Coordinator) submitProof(caller ids.ShortID, args SubmitProofArgs) (uint64, error) {
	if _, err := c.state.GetChainConfig(args.SourceChain); err != nil {
		return 0, err
	}
	if _, err := c.state.GetChainConfig(args.TargetChain); err != nil {
		return 0, err
	}

	last, err := c.state.LastProofID()
	if err != nil {
		return 0, err
	}
	proofID := last + 1

	proof := &Proof{
		ProofID:        proofID,
		SourceChain:    args.SourceChain,
		TargetChain:    args.TargetChain,
		TxHash:         args.TxHash,
		MerkleRoot:     args.MerkleRoot,
		MerklePath:     args.MerklePath,
		Signature:      args.Signature,
		BlockTimestamp: args.BlockTimestamp,
		Submitter:      caller,
		SubmittedAt:    c.clock.Unix(),
	}
	if err := c.state.PutProof(proof); err != nil {
		return 0, err
	}
	if err := c.state.SetLastProofID(proofID); err != nil {
		return 0, err
	}

	log.Info("proof submitted", "proofID", proofID, "sourceChain", args.SourceChain, "targetChain", args.TargetChain)
	return proofID, nil
}

// VerifyProof judges [proof] against the configured chain policies at
// ledger time [now]. It is a pure function of its inputs: identical
// inputs always produce the identical verdict, so any recorded verdict
// can be replayed for audit.
func VerifyProof(proof *Proof, source *ChainConfig, target *ChainConfig, threshold uint32, now uint64) Verdict {
	if source == nil || !source.Active || target == nil || !target.Active {
		return VerdictInvalid
	}
	if len(proof.Signature) != SignatureLen {
		return VerdictInvalid
	}
	if !verifyMerklePath(proof.TxHash, proof.MerklePath, proof.MerkleRoot) {
		return VerdictMalformedProof
	}

	maxAge := uint64(source.MinConfirmations) * source.BlockTime
	if now > proof.BlockTimestamp && now-proof.BlockTimestamp > maxAge {
		return VerdictExpired
	}

	if source.TrustLevel < threshold || target.TrustLevel < threshold {
		return VerdictInsufficientConfirmations
	}
	return VerdictValid
}

// RecordVerification runs VerifyProof over a stored proof and persists
// the verdict. Only trusted verifiers may record, and a proof's verdict
// is recorded at most once.
func (c *Coordinator) RecordVerification(caller ids.ShortID, proofID uint64) (Verdict, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return VerdictPending, err
	}
	verdict, err := c.recordVerification(caller, proofID)
	if err != nil {
		c.state.Abort()
		return VerdictPending, err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return VerdictPending, err
	}
	return verdict, nil
}

func (c *Coordinator) recordVerification(caller ids.ShortID, proofID uint64) (Verdict, error) {
	trusted, err := c.state.IsTrustedVerifier(caller)
	if err != nil {
		return VerdictPending, err
	}
	if !trusted {
		return VerdictPending, errNotVerifier
	}

	if _, err := c.state.GetVerification(proofID); err == nil {
		return VerdictPending, errVerdictRecorded
	} else if err != errVerificationNotFound {
		return VerdictPending, err
	}

	proof, err := c.state.GetProof(proofID)
	if err != nil {
		return VerdictPending, err
	}

	verdict := c.judgeProof(proof)
	verified := &VerifiedProof{
		ProofID:    proofID,
		Verdict:    verdict,
		Verifier:   caller,
		VerifiedAt: c.clock.Unix(),
	}
	if err := c.state.PutVerification(verified); err != nil {
		return VerdictPending, err
	}

	log.Info("proof verified", "proofID", proofID, "verdict", verdict, "verifier", caller)
	return verdict, nil
}

// judgeProof resolves the chain policies for [proof] and applies
// VerifyProof. An unconfigured chain yields Invalid, matching the unknown
// chain rule.
func (c *Coordinator) judgeProof(proof *Proof) Verdict {
	source, err := c.state.GetChainConfig(proof.SourceChain)
	if err != nil {
		source = nil
	}
	target, err := c.state.GetChainConfig(proof.TargetChain)
	if err != nil {
		target = nil
	}
	return VerifyProof(proof, source, target, c.cfg.TrustThreshold, c.clock.Unix())
}

// BatchVerifyResult is one entry of a batch verification.
type BatchVerifyResult struct {
	ProofID uint64  `json:"proofID"`
	Verdict Verdict `json:"verdict"`
	Found   bool    `json:"found"`
}

// BatchVerify records verdicts for an ordered set of proofs. A missing or
// already-verified proof is reported in its slot and does not abort the
// rest of the batch.
func (c *Coordinator) BatchVerify(caller ids.ShortID, proofIDs []uint64) ([]BatchVerifyResult, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	results, err := c.batchVerify(caller, proofIDs)
	if err != nil {
		c.state.Abort()
		return nil, err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return nil, err
	}
	return results, nil
}

func (c *Coordinator) batchVerify(caller ids.ShortID, proofIDs []uint64) ([]BatchVerifyResult, error) {
	trusted, err := c.state.IsTrustedVerifier(caller)
	if err != nil {
		return nil, err
	}
	if !trusted {
		return nil, errNotVerifier
	}

	results := make([]BatchVerifyResult, 0, len(proofIDs))
	now := c.clock.Unix()
	for _, proofID := range proofIDs {
		proof, err := c.state.GetProof(proofID)
		if err == errProofNotFound {
			results = append(results, BatchVerifyResult{ProofID: proofID})
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, err := c.state.GetVerification(proofID); err == nil {
			results = append(results, BatchVerifyResult{ProofID: proofID, Found: true})
			continue
		} else if err != errVerificationNotFound {
			return nil, err
		}

		verdict := c.judgeProof(proof)
		verified := &VerifiedProof{
			ProofID:    proofID,
			Verdict:    verdict,
			Verifier:   caller,
			VerifiedAt: now,
		}
		if err := c.state.PutVerification(verified); err != nil {
			return nil, err
		}
		results = append(results, BatchVerifyResult{ProofID: proofID, Verdict: verdict, Found: true})
	}
	return results, nil
}

// OverrideVerdict replaces a recorded verdict. Authority only; this is
// the single sanctioned mutation of a verification record.
func (c *Coordinator) OverrideVerdict(caller ids.ShortID, proofID uint64, verdict Verdict) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.overrideVerdict(caller, proofID, verdict); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) overrideVerdict(caller ids.ShortID, proofID uint64, verdict Verdict) error {
	if err := c.ensureAuthority(caller); err != nil {
		return err
	}
	verified, err := c.state.GetVerification(proofID)
	if err != nil {
		return err
	}

	verified.Verdict = verdict
	verified.Verifier = caller
	verified.VerifiedAt = c.clock.Unix()
	if err := c.state.PutVerification(verified); err != nil {
		return err
	}

	log.Warn("verdict overridden", "proofID", proofID, "verdict", verdict)
	return nil
}

// GetProof returns the stored proof.
func (c *Coordinator) GetProof(proofID uint64) (*Proof, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetProof(proofID)
}

// GetVerification returns the recorded verdict for a proof.
func (c *Coordinator) GetVerification(proofID uint64) (*VerifiedProof, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetVerification(proofID)
}

// IsFullyVerified reports whether a proof has a recorded Valid verdict
// and both of its chains still meet the composite trust threshold.
func (c *Coordinator) IsFullyVerified(proofID uint64) (bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	verified, err := c.state.GetVerification(proofID)
	if err == errVerificationNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if verified.Verdict != VerdictValid {
		return false, nil
	}

	proof, err := c.state.GetProof(proofID)
	if err != nil {
		return false, err
	}
	source, err := c.state.GetChainConfig(proof.SourceChain)
	if err != nil {
		return false, err
	}
	target, err := c.state.GetChainConfig(proof.TargetChain)
	if err != nil {
		return false, err
	}
	return source.TrustLevel >= c.cfg.TrustThreshold && target.TrustLevel >= c.cfg.TrustThreshold, nil
}

// ProofCount returns the number of proofs ever submitted.
func (c *Coordinator) ProofCount() (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.LastProofID()
}
