// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
)

const swapCacheSize = 2048

var (
	swapRecordPrefix   = []byte("record")
	swapActivePrefix   = []byte("active")
	swapProposalPrefix = []byte("proposal")

	lastSwapIDKey     = []byte("last_swap_id")
	lastProposalIDKey = []byte("last_proposal_id")

	_ SwapState = (*swapState)(nil)
)

// SwapState owns the swap and proposal records, the monotonic id counters,
// and the active-set index. The index holds one key per open swap so
// membership and removal are O(1) instead of a list rewrite.
type SwapState interface {
	GetSwap(swapID uint64) (*Swap, error)
	PutSwap(swap *Swap) error

	AddActiveSwap(swapID uint64) error
	RemoveActiveSwap(swapID uint64) error
	ActiveSwaps() ([]uint64, error)

	LastSwapID() (uint64, error)
	SetLastSwapID(swapID uint64) error

	GetProposal(proposalID uint64) (*SwapProposal, error)
	PutProposal(proposal *SwapProposal) error
	LastProposalID() (uint64, error)
	SetLastProposalID(proposalID uint64) error

	ClearSwapCache()
}

type swapState struct {
	swapCache  cache.Cacher
	recordDB   database.Database
	activeDB   database.Database
	proposalDB database.Database
	metaDB     database.Database
}

func NewSwapState(db database.Database) SwapState {
	return &swapState{
		swapCache:  &cache.LRU{Size: swapCacheSize},
		recordDB:   prefixdb.New(swapRecordPrefix, db),
		activeDB:   prefixdb.New(swapActivePrefix, db),
		proposalDB: prefixdb.New(swapProposalPrefix, db),
		metaDB:     db,
	}
}

func (s *swapState) GetSwap(swapID uint64) (*Swap, error) {
	if swapIntf, cached := s.swapCache.Get(swapID); cached {
		if swapIntf == nil {
			return nil, errSwapNotFound
		}
		return swapIntf.(*Swap), nil
	}

	bytes, err := s.recordDB.Get(packUint64(swapID))
	if err == database.ErrNotFound {
		s.swapCache.Put(swapID, nil)
		return nil, errSwapNotFound
	}
	if err != nil {
		return nil, err
	}

	swap := &Swap{}
	parsedVersion, err := Codec.Unmarshal(bytes, swap)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}

	s.swapCache.Put(swapID, swap)
	return swap, nil
}

func (s *swapState) PutSwap(swap *Swap) error {
	bytes, err := Codec.Marshal(CodecVersion, swap)
	if err != nil {
		return err
	}
	s.swapCache.Put(swap.SwapID, swap)
	return s.recordDB.Put(packUint64(swap.SwapID), bytes)
}

func (s *swapState) AddActiveSwap(swapID uint64) error {
	return s.activeDB.Put(packUint64(swapID), nil)
}

func (s *swapState) RemoveActiveSwap(swapID uint64) error {
	return s.activeDB.Delete(packUint64(swapID))
}

// ActiveSwaps iterates the index in key order, which is numeric order for
// big-endian packed ids.
func (s *swapState) ActiveSwaps() ([]uint64, error) {
	iter := s.activeDB.NewIterator()
	defer iter.Release()

	active := []uint64{}
	for iter.Next() {
		swapID, err := unpackUint64(iter.Key())
		if err != nil {
			return nil, err
		}
		active = append(active, swapID)
	}
	return active, iter.Error()
}

func (s *swapState) LastSwapID() (uint64, error) {
	return getCounter(s.metaDB, lastSwapIDKey)
}

func (s *swapState) SetLastSwapID(swapID uint64) error {
	return s.metaDB.Put(lastSwapIDKey, packUint64(swapID))
}

func (s *swapState) GetProposal(proposalID uint64) (*SwapProposal, error) {
	bytes, err := s.proposalDB.Get(packUint64(proposalID))
	if err == database.ErrNotFound {
		return nil, errProposalNotFound
	}
	if err != nil {
		return nil, err
	}

	proposal := &SwapProposal{}
	parsedVersion, err := Codec.Unmarshal(bytes, proposal)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}
	return proposal, nil
}

func (s *swapState) PutProposal(proposal *SwapProposal) error {
	bytes, err := Codec.Marshal(CodecVersion, proposal)
	if err != nil {
		return err
	}
	return s.proposalDB.Put(packUint64(proposal.ProposalID), bytes)
}

func (s *swapState) LastProposalID() (uint64, error) {
	return getCounter(s.metaDB, lastProposalIDKey)
}

func (s *swapState) SetLastProposalID(proposalID uint64) error {
	return s.metaDB.Put(lastProposalIDKey, packUint64(proposalID))
}

func (s *swapState) ClearSwapCache() {
	s.swapCache.Flush()
}

func packUint64(v uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, v)
	return bytes
}

func packUint32(v uint32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, v)
	return bytes
}

func unpackUint64(bytes []byte) (uint64, error) {
	if len(bytes) != 8 {
		return 0, errBadRecordEncoding
	}
	return binary.BigEndian.Uint64(bytes), nil
}

// getCounter reads a uint64 counter, treating a missing key as zero so the
// first allocated id is 1.
func getCounter(db database.Database, key []byte) (uint64, error) {
	bytes, err := db.Get(key)
	if err == database.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return unpackUint64(bytes)
}
