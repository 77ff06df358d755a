// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
)

func TestActiveSwapOrdering(t *testing.T) {
	assert := assert.New(t)
	s := NewState(memdb.New())

	// keys are big-endian packed so iteration order is numeric even past
	// one byte
	for _, id := range []uint64{300, 3, 256, 1, 255} {
		assert.NoError(s.AddActiveSwap(id))
	}
	active, err := s.ActiveSwaps()
	assert.NoError(err)
	assert.Equal([]uint64{1, 3, 255, 256, 300}, active)

	assert.NoError(s.RemoveActiveSwap(256))
	active, err = s.ActiveSwaps()
	assert.NoError(err)
	assert.Equal([]uint64{1, 3, 255, 300}, active)
}

func TestCountersStartAtZero(t *testing.T) {
	assert := assert.New(t)
	s := NewState(memdb.New())

	for _, last := range []func() (uint64, error){
		s.LastSwapID,
		s.LastProposalID,
		s.LastMessageID,
		s.LastRelayerID,
		s.LastProofID,
	} {
		n, err := last()
		assert.NoError(err)
		assert.Equal(uint64(0), n)
	}
}

func TestSwapRecordRoundTrip(t *testing.T) {
	assert := assert.New(t)
	s := NewState(memdb.New())

	swap := &Swap{
		SwapID:      7,
		Initiator:   testInitiator,
		Participant: testParticipant,
		SourceChain: localChainID,
		TargetChain: remoteChainID,
		SourceAsset: Asset{Address: []byte{0xaa}, Amount: 1000, Decimals: 6},
		TargetAsset: Asset{Address: []byte{0xbb}, Amount: 500, Decimals: 8},
		SecretHash:  ids.ID{0x42},
		Status:      SwapFunded,
		Timeout:     testBaseTime + 3600,
		CreatedAt:   testBaseTime,
		InitiatorDeposit: Deposit{
			Present:     true,
			TxHash:      ids.ID{0x11},
			BlockNumber: 100,
		},
	}
	assert.NoError(s.PutSwap(swap))
	assert.NoError(s.Commit())

	// bypass the write-through cache to exercise the codec path
	s.ClearSwapCache()
	got, err := s.GetSwap(7)
	assert.NoError(err)
	assert.Equal(swap.SwapID, got.SwapID)
	assert.Equal(swap.Initiator, got.Initiator)
	assert.Equal(swap.Participant, got.Participant)
	assert.Equal(swap.SourceAsset, got.SourceAsset)
	assert.Equal(swap.TargetAsset, got.TargetAsset)
	assert.Equal(swap.SecretHash, got.SecretHash)
	assert.Equal(swap.Status, got.Status)
	assert.Equal(swap.Timeout, got.Timeout)
	assert.Equal(swap.CreatedAt, got.CreatedAt)
	assert.True(got.InitiatorDeposit.Present)
	assert.Equal(swap.InitiatorDeposit.TxHash, got.InitiatorDeposit.TxHash)
	assert.False(got.ParticipantDeposit.Present)

	_, err = s.GetSwap(8)
	assert.ErrorIs(err, errSwapNotFound)
}

func TestAbortDropsPendingWrites(t *testing.T) {
	assert := assert.New(t)
	s := NewState(memdb.New())

	assert.NoError(s.PutSwap(&Swap{SwapID: 1, Status: SwapInitiated}))
	assert.NoError(s.SetLastSwapID(1))
	s.Abort()

	_, err := s.GetSwap(1)
	assert.ErrorIs(err, errSwapNotFound)
	last, err := s.LastSwapID()
	assert.NoError(err)
	assert.Equal(uint64(0), last)
}

func TestChainStatsDefaultZero(t *testing.T) {
	assert := assert.New(t)
	s := NewState(memdb.New())

	stats, err := s.GetChainStats(9)
	assert.NoError(err)
	assert.Equal(&ChainStats{ChainID: 9}, stats)
}

func TestRelayerAddressIndex(t *testing.T) {
	assert := assert.New(t)
	s := NewState(memdb.New())

	relayer := &Relayer{
		RelayerID:       1,
		Address:         testRelayerAddr,
		SupportedChains: []uint32{remoteChainID},
		Active:          true,
	}
	assert.NoError(s.PutRelayer(relayer))

	byAddr, err := s.GetRelayerByAddress(testRelayerAddr)
	assert.NoError(err)
	assert.Equal(relayer.RelayerID, byAddr.RelayerID)

	_, err = s.GetRelayerByAddress(testStranger)
	assert.ErrorIs(err, errRelayerNotFound)
}
