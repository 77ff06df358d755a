// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"
)

var (
	chainConfigPrefix     = []byte("config")
	trustedVerifierPrefix = []byte("verifier")
	proofRecordPrefix     = []byte("proof")
	verificationPrefix    = []byte("verification")

	lastProofIDKey = []byte("last_proof_id")

	_ ChainState = (*chainState)(nil)
)

// ChainState owns the per-chain trust policies, the trusted verifier set,
// and the proof evidence plus recorded verdicts.
type ChainState interface {
	GetChainConfig(chainID uint32) (*ChainConfig, error)
	PutChainConfig(config *ChainConfig) error
	ChainIDs() ([]uint32, error)

	IsTrustedVerifier(verifier ids.ShortID) (bool, error)
	AddTrustedVerifier(verifier ids.ShortID) error
	RemoveTrustedVerifier(verifier ids.ShortID) error

	GetProof(proofID uint64) (*Proof, error)
	PutProof(proof *Proof) error
	LastProofID() (uint64, error)
	SetLastProofID(proofID uint64) error

	GetVerification(proofID uint64) (*VerifiedProof, error)
	PutVerification(verified *VerifiedProof) error
}

type chainState struct {
	configDB       database.Database
	verifierDB     database.Database
	proofDB        database.Database
	verificationDB database.Database
	metaDB         database.Database
}

func NewChainState(db database.Database) ChainState {
	return &chainState{
		configDB:       prefixdb.New(chainConfigPrefix, db),
		verifierDB:     prefixdb.New(trustedVerifierPrefix, db),
		proofDB:        prefixdb.New(proofRecordPrefix, db),
		verificationDB: prefixdb.New(verificationPrefix, db),
		metaDB:         db,
	}
}

func (s *chainState) GetChainConfig(chainID uint32) (*ChainConfig, error) {
	bytes, err := s.configDB.Get(packUint32(chainID))
	if err == database.ErrNotFound {
		return nil, errChainNotFound
	}
	if err != nil {
		return nil, err
	}

	config := &ChainConfig{}
	parsedVersion, err := Codec.Unmarshal(bytes, config)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}
	return config, nil
}

func (s *chainState) PutChainConfig(config *ChainConfig) error {
	bytes, err := Codec.Marshal(CodecVersion, config)
	if err != nil {
		return err
	}
	return s.configDB.Put(packUint32(config.ChainID), bytes)
}

func (s *chainState) ChainIDs() ([]uint32, error) {
	iter := s.configDB.NewIterator()
	defer iter.Release()

	chainIDs := []uint32{}
	for iter.Next() {
		key := iter.Key()
		if len(key) != 4 {
			return nil, errBadRecordEncoding
		}
		chainIDs = append(chainIDs, binary.BigEndian.Uint32(key))
	}
	return chainIDs, iter.Error()
}

func (s *chainState) IsTrustedVerifier(verifier ids.ShortID) (bool, error) {
	return s.verifierDB.Has(verifier[:])
}

func (s *chainState) AddTrustedVerifier(verifier ids.ShortID) error {
	return s.verifierDB.Put(verifier[:], nil)
}

func (s *chainState) RemoveTrustedVerifier(verifier ids.ShortID) error {
	return s.verifierDB.Delete(verifier[:])
}

func (s *chainState) GetProof(proofID uint64) (*Proof, error) {
	bytes, err := s.proofDB.Get(packUint64(proofID))
	if err == database.ErrNotFound {
		return nil, errProofNotFound
	}
	if err != nil {
		return nil, err
	}

	proof := &Proof{}
	parsedVersion, err := Codec.Unmarshal(bytes, proof)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}
	return proof, nil
}

func (s *chainState) PutProof(proof *Proof) error {
	bytes, err := Codec.Marshal(CodecVersion, proof)
	if err != nil {
		return err
	}
	return s.proofDB.Put(packUint64(proof.ProofID), bytes)
}

func (s *chainState) LastProofID() (uint64, error) {
	return getCounter(s.metaDB, lastProofIDKey)
}

func (s *chainState) SetLastProofID(proofID uint64) error {
	return s.metaDB.Put(lastProofIDKey, packUint64(proofID))
}

func (s *chainState) GetVerification(proofID uint64) (*VerifiedProof, error) {
	bytes, err := s.verificationDB.Get(packUint64(proofID))
	if err == database.ErrNotFound {
		return nil, errVerificationNotFound
	}
	if err != nil {
		return nil, err
	}

	verified := &VerifiedProof{}
	parsedVersion, err := Codec.Unmarshal(bytes, verified)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}
	return verified, nil
}

func (s *chainState) PutVerification(verified *VerifiedProof) error {
	bytes, err := Codec.Marshal(CodecVersion, verified)
	if err != nil {
		return err
	}
	return s.verificationDB.Put(packUint64(verified.ProofID), bytes)
}
