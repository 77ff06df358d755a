// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
)

func TestSwapLifecycleRedeem(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	secret := []byte("the preimage")
	swapID := newTestSwap(t, c, ComputeSecretHash(secret))
	assert.Equal(uint64(1), swapID)

	swap, err := c.GetSwap(swapID)
	assert.NoError(err)
	assert.Equal(SwapInitiated, swap.Status)
	assert.Equal(testInitiator, swap.Initiator)
	assert.Equal(testBaseTime, swap.CreatedAt)
	assert.False(swap.FullyFunded())

	fundTestSwap(t, c, swapID)

	assert.NoError(c.RedeemSwap(testParticipant, swapID, secret))

	swap, err = c.GetSwap(swapID)
	assert.NoError(err)
	assert.Equal(SwapRedeemed, swap.Status)
	assert.Equal(secret, swap.Secret)
	assert.Equal(c.clock.Unix(), swap.CompletedAt)
	assert.True(swap.Status.Terminal())

	active, err := c.ActiveSwaps()
	assert.NoError(err)
	assert.Empty(active)

	count, err := c.SwapCount()
	assert.NoError(err)
	assert.Equal(uint64(1), count)
}

func TestSwapIDsMonotonic(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	hash := ComputeSecretHash([]byte("a"))
	first := newTestSwap(t, c, hash)
	second := newTestSwap(t, c, hash)
	assert.Equal(uint64(1), first)
	assert.Equal(uint64(2), second)

	active, err := c.ActiveSwaps()
	assert.NoError(err)
	assert.Equal([]uint64{1, 2}, active)
}

func TestInitiateSwapValidation(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	args := InitiateSwapArgs{
		Participant: testParticipant,
		SourceChain: localChainID,
		TargetChain: remoteChainID,
		SecretHash:  ComputeSecretHash([]byte("a")),
		Timeout:     testBaseTime + 2*60*60,
	}

	sameParty := args
	sameParty.Participant = testInitiator
	_, err := c.InitiateSwap(testInitiator, sameParty)
	assert.ErrorIs(err, errSameParty)

	tooSoon := args
	tooSoon.Timeout = testBaseTime + 60
	_, err = c.InitiateSwap(testInitiator, tooSoon)
	assert.ErrorIs(err, errInvalidTimelock)

	tooLate := args
	tooLate.Timeout = testBaseTime + 8*24*60*60
	_, err = c.InitiateSwap(testInitiator, tooLate)
	assert.ErrorIs(err, errInvalidTimelock)

	// boundary values are inside the window
	atMin := args
	atMin.Timeout = testBaseTime + c.cfg.MinTimelock
	_, err = c.InitiateSwap(testInitiator, atMin)
	assert.NoError(err)

	atMax := args
	atMax.Timeout = testBaseTime + c.cfg.MaxTimelock
	_, err = c.InitiateSwap(testInitiator, atMax)
	assert.NoError(err)
}

func TestFundSwapRules(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	swapID := newTestSwap(t, c, ComputeSecretHash([]byte("a")))

	_, err := c.FundSwap(testStranger, swapID, Deposit{TxHash: ids.ID{0x11}})
	assert.ErrorIs(err, errNotCounterparty)

	_, err = c.FundSwap(testInitiator, swapID, Deposit{TxHash: ids.ID{0x11}})
	assert.NoError(err)
	_, err = c.FundSwap(testInitiator, swapID, Deposit{TxHash: ids.ID{0x12}})
	assert.ErrorIs(err, errAlreadyFunded)

	_, err = c.FundSwap(testInitiator, 99, Deposit{})
	assert.ErrorIs(err, errSwapNotFound)

	advanceClock(c, 3*60*60)
	_, err = c.FundSwap(testParticipant, swapID, Deposit{TxHash: ids.ID{0x22}})
	assert.ErrorIs(err, errExpired)
}

func TestRedeemSwapRules(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	secret := []byte("the preimage")
	swapID := newTestSwap(t, c, ComputeSecretHash(secret))

	// not yet funded
	assert.ErrorIs(c.RedeemSwap(testParticipant, swapID, secret), errInvalidState)

	fundTestSwap(t, c, swapID)

	assert.ErrorIs(c.RedeemSwap(testInitiator, swapID, secret), errUnauthorized)
	assert.ErrorIs(c.RedeemSwap(testParticipant, swapID, []byte("wrong")), errInvalidSecret)
	assert.ErrorIs(c.RedeemSwap(testParticipant, swapID, nil), errEmptySecret)
	assert.ErrorIs(c.RedeemSwap(testParticipant, swapID, make([]byte, MaxSecretLen+1)), errSecretTooLong)

	// a failed redeem leaves the swap untouched
	swap, err := c.GetSwap(swapID)
	assert.NoError(err)
	assert.Equal(SwapFunded, swap.Status)
	assert.Empty(swap.Secret)

	advanceClock(c, 3*60*60)
	assert.ErrorIs(c.RedeemSwap(testParticipant, swapID, secret), errExpired)
}

func TestRefundSwap(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	secret := []byte("the preimage")
	swapID := newTestSwap(t, c, ComputeSecretHash(secret))
	fundTestSwap(t, c, swapID)

	assert.ErrorIs(c.RefundSwap(testInitiator, swapID), errNotYetExpired)

	advanceClock(c, 3*60*60)
	assert.ErrorIs(c.RefundSwap(testParticipant, swapID), errUnauthorized)
	assert.NoError(c.RefundSwap(testInitiator, swapID))

	swap, err := c.GetSwap(swapID)
	assert.NoError(err)
	assert.Equal(SwapRefunded, swap.Status)

	// terminal states admit no further transitions
	assert.ErrorIs(c.RedeemSwap(testParticipant, swapID, secret), errInvalidState)
	assert.ErrorIs(c.RefundSwap(testInitiator, swapID), errInvalidState)
}

func TestExpireSwapsSweep(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	hash := ComputeSecretHash([]byte("a"))
	funded := newTestSwap(t, c, hash)
	unfunded := newTestSwap(t, c, hash)
	fundTestSwap(t, c, funded)

	// nothing is due yet
	expired, err := c.ExpireSwaps()
	assert.NoError(err)
	assert.Empty(expired)

	advanceClock(c, 3*60*60)
	expired, err = c.ExpireSwaps()
	assert.NoError(err)
	assert.Equal([]uint64{funded}, expired)

	swap, err := c.GetSwap(funded)
	assert.NoError(err)
	assert.Equal(SwapExpired, swap.Status)

	// the sweep leaves Initiated swaps for the initiator to reclaim
	swap, err = c.GetSwap(unfunded)
	assert.NoError(err)
	assert.Equal(SwapInitiated, swap.Status)

	// sweeping again is a no-op
	expired, err = c.ExpireSwaps()
	assert.NoError(err)
	assert.Empty(expired)

	assert.ErrorIs(c.CancelSwap(testStranger, unfunded), errUnauthorized)
	assert.NoError(c.CancelSwap(testInitiator, unfunded))

	swap, err = c.GetSwap(unfunded)
	assert.NoError(err)
	assert.Equal(SwapCancelled, swap.Status)

	active, err := c.ActiveSwaps()
	assert.NoError(err)
	assert.Empty(active)
}

func TestCancelSwapAuthority(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	swapID := newTestSwap(t, c, ComputeSecretHash([]byte("a")))
	fundTestSwap(t, c, swapID)

	// the initiator cannot cancel a funded swap, even after timeout
	assert.ErrorIs(c.CancelSwap(testInitiator, swapID), errUnauthorized)

	assert.NoError(c.CancelSwap(testAuthority, swapID))
	assert.ErrorIs(c.CancelSwap(testAuthority, swapID), errInvalidState)
}

func TestProposalFlow(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	proposed := Swap{
		Initiator:   testInitiator,
		Participant: testParticipant,
		SourceChain: localChainID,
		TargetChain: remoteChainID,
		SourceAsset: Asset{Address: []byte{0xaa}, Amount: 1000, Decimals: 6},
		TargetAsset: Asset{Address: []byte{0xbb}, Amount: 500, Decimals: 8},
		SecretHash:  ComputeSecretHash([]byte("a")),
		Timeout:     testBaseTime + 2*60*60,
	}

	proposalID, err := c.CreateProposal(testInitiator, proposed, []byte("sig"))
	assert.NoError(err)
	assert.Equal(uint64(1), proposalID)

	proposal, err := c.GetProposal(proposalID)
	assert.NoError(err)
	assert.Equal(testInitiator, proposal.Proposer)
	assert.Equal([]byte("sig"), proposal.Signature)

	_, err = c.AcceptProposal(testStranger, proposalID)
	assert.ErrorIs(err, errUnauthorized)

	swapID, err := c.AcceptProposal(testParticipant, proposalID)
	assert.NoError(err)

	swap, err := c.GetSwap(swapID)
	assert.NoError(err)
	assert.Equal(testInitiator, swap.Initiator)
	assert.Equal(testParticipant, swap.Participant)
	assert.Equal(proposed.SecretHash, swap.SecretHash)

	_, err = c.GetProposal(99)
	assert.ErrorIs(err, errProposalNotFound)
}

func TestProposalTimeoutRecheck(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	proposed := Swap{
		Initiator:   testInitiator,
		Participant: testParticipant,
		SecretHash:  ComputeSecretHash([]byte("a")),
		Timeout:     testBaseTime + 2*60*60,
	}
	proposalID, err := c.CreateProposal(testInitiator, proposed, nil)
	assert.NoError(err)

	// by acceptance time the proposed timeout is no longer inside the
	// timelock window
	advanceClock(c, 90*60)
	_, err = c.AcceptProposal(testParticipant, proposalID)
	assert.ErrorIs(err, errInvalidTimelock)
}

func TestUserSwaps(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	hash := ComputeSecretHash([]byte("a"))
	newTestSwap(t, c, hash)
	newTestSwap(t, c, hash)

	other := ids.ShortID{0x09}
	_, err := c.InitiateSwap(other, InitiateSwapArgs{
		Participant: testStranger,
		SecretHash:  hash,
		Timeout:     testBaseTime + 2*60*60,
	})
	assert.NoError(err)

	swaps, err := c.UserSwaps(testInitiator)
	assert.NoError(err)
	assert.Len(swaps, 2)

	swaps, err = c.UserSwaps(testStranger)
	assert.NoError(err)
	assert.Len(swaps, 1)

	swaps, err = c.UserSwaps(ids.ShortID{0x7f})
	assert.NoError(err)
	assert.Empty(swaps)
}
