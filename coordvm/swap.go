// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"
)

// SwapStatus tracks a swap through its lifecycle.
type SwapStatus uint8

const (
	SwapInitiated SwapStatus = iota
	SwapFunded
	SwapRedeemed
	SwapRefunded
	SwapExpired
	SwapCancelled
)

func (s SwapStatus) String() string {
	switch s {
	case SwapInitiated:
		return "Initiated"
	case SwapFunded:
		return "Funded"
	case SwapRedeemed:
		return "Redeemed"
	case SwapRefunded:
		return "Refunded"
	case SwapExpired:
		return "Expired"
	case SwapCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s SwapStatus) Terminal() bool {
	return s == SwapRedeemed || s == SwapRefunded || s == SwapExpired || s == SwapCancelled
}

// Asset describes one side of a swap: a token address on its chain, the
// amount in base units, and the token's decimal scale.
type Asset struct {
	Address  []byte `serialize:"true" json:"address"`
	Amount   uint64 `serialize:"true" json:"amount"`
	Decimals uint8  `serialize:"true" json:"decimals"`
}

// Deposit records one party's on-chain funding evidence. The coordinator
// records intent and evidence only; custody of the funds stays on the
// remote chain.
type Deposit struct {
	Present        bool   `serialize:"true" json:"present"`
	TxHash         ids.ID `serialize:"true" json:"txHash"`
	BlockNumber    uint64 `serialize:"true" json:"blockNumber"`
	ConfirmedAt    uint64 `serialize:"true" json:"confirmedAt"`
	InclusionProof []byte `serialize:"true" json:"inclusionProof"`
}

// Swap is a hash-locked, time-bound agreement between two parties to
// exchange assets across chains. Records are whole-record replace-on-write;
// Secret is non-empty iff Status is SwapRedeemed, and CompletedAt is
// non-zero iff Status is terminal.
type Swap struct {
	SwapID      uint64      `serialize:"true" json:"swapID"`
	Initiator   ids.ShortID `serialize:"true" json:"initiator"`
	Participant ids.ShortID `serialize:"true" json:"participant"`
	SourceChain uint32      `serialize:"true" json:"sourceChain"`
	TargetChain uint32      `serialize:"true" json:"targetChain"`
	SourceAsset Asset       `serialize:"true" json:"sourceAsset"`
	TargetAsset Asset       `serialize:"true" json:"targetAsset"`
	SecretHash  ids.ID      `serialize:"true" json:"secretHash"`
	Secret      []byte      `serialize:"true" json:"secret"`
	Status      SwapStatus  `serialize:"true" json:"status"`
	Timeout     uint64      `serialize:"true" json:"timeout"`
	CreatedAt   uint64      `serialize:"true" json:"createdAt"`
	CompletedAt uint64      `serialize:"true" json:"completedAt"`

	InitiatorDeposit   Deposit `serialize:"true" json:"initiatorDeposit"`
	ParticipantDeposit Deposit `serialize:"true" json:"participantDeposit"`
}

// FullyFunded reports whether both parties have recorded deposits.
func (s *Swap) FullyFunded() bool {
	return s.InitiatorDeposit.Present && s.ParticipantDeposit.Present
}

// IsParty reports whether [addr] is the initiator or the participant.
func (s *Swap) IsParty(addr ids.ShortID) bool {
	return addr == s.Initiator || addr == s.Participant
}

// SwapProposal is a signed swap offer awaiting acceptance by the intended
// participant.
type SwapProposal struct {
	ProposalID uint64      `serialize:"true" json:"proposalID"`
	Proposer   ids.ShortID `serialize:"true" json:"proposer"`
	Swap       Swap        `serialize:"true" json:"swap"`
	Signature  []byte      `serialize:"true" json:"signature"`
	CreatedAt  uint64      `serialize:"true" json:"createdAt"`
}

// InitiateSwapArgs carries the caller-supplied fields of a new swap.
type InitiateSwapArgs struct {
	Participant ids.ShortID
	SourceChain uint32
	TargetChain uint32
	SourceAsset Asset
	TargetAsset Asset
	SecretHash  ids.ID
	Timeout     uint64
}

// InitiateSwap allocates a new swap in the Initiated state and adds it to
// the active set. The timeout must land inside the configured timelock
// window measured from the ledger clock.
func (c *Coordinator) InitiateSwap(caller ids.ShortID, args InitiateSwapArgs) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return 0, err
	}
	id, err := c.initiateSwap(caller, args)
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

func (c *Coordinator) initiateSwap(caller ids.ShortID, args InitiateSwapArgs) (uint64, error) {
	if caller == args.Participant {
		return 0, errSameParty
	}
	now := c.clock.Unix()
	if args.Timeout < now+c.cfg.MinTimelock || args.Timeout > now+c.cfg.MaxTimelock {
		return 0, errInvalidTimelock
	}

	last, err := c.state.LastSwapID()
	if err != nil {
		return 0, err
	}
	swapID := last + 1

	swap := &Swap{
		SwapID:      swapID,
		Initiator:   caller,
		Participant: args.Participant,
		SourceChain: args.SourceChain,
		TargetChain: args.TargetChain,
		SourceAsset: args.SourceAsset,
		TargetAsset: args.TargetAsset,
		SecretHash:  args.SecretHash,
		Status:      SwapInitiated,
		Timeout:     args.Timeout,
		CreatedAt:   now,
	}

	if err := c.state.PutSwap(swap); err != nil {
		return 0, err
	}
	if err := c.state.SetLastSwapID(swapID); err != nil {
		return 0, err
	}
	if err := c.state.AddActiveSwap(swapID); err != nil {
		return 0, err
	}

	log.Info("swap initiated", "swapID", swapID, "initiator", caller, "participant", args.Participant, "timeout", args.Timeout)
	return swapID, nil
}

// FundSwap records [caller]'s deposit evidence for the swap. The swap
// advances to Funded only once both parties' deposits are present.
func (c *Coordinator) FundSwap(caller ids.ShortID, swapID uint64, deposit Deposit) (SwapStatus, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return 0, err
	}
	status, err := c.fundSwap(caller, swapID, deposit)
	if err != nil {
		c.state.Abort()
		return 0, err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return 0, err
	}
	return status, nil
}

func (c *Coordinator) fundSwap(caller ids.ShortID, swapID uint64, deposit Deposit) (SwapStatus, error) {
	swap, err := c.state.GetSwap(swapID)
	if err != nil {
		return 0, err
	}
	if swap.Status != SwapInitiated {
		return 0, errInvalidState
	}
	if !swap.IsParty(caller) {
		return 0, errNotCounterparty
	}
	if c.clock.Unix() > swap.Timeout {
		return 0, errExpired
	}

	deposit.Present = true
	switch caller {
	case swap.Initiator:
		if swap.InitiatorDeposit.Present {
			return 0, errAlreadyFunded
		}
		swap.InitiatorDeposit = deposit
	case swap.Participant:
		if swap.ParticipantDeposit.Present {
			return 0, errAlreadyFunded
		}
		swap.ParticipantDeposit = deposit
	}

	if swap.FullyFunded() {
		swap.Status = SwapFunded
	}
	if err := c.state.PutSwap(swap); err != nil {
		return 0, err
	}

	log.Info("swap deposit recorded", "swapID", swapID, "party", caller, "status", swap.Status)
	return swap.Status, nil
}

// RedeemSwap completes the swap by revealing the secret. Only the
// participant may redeem, only while Funded, and only before the timeout.
func (c *Coordinator) RedeemSwap(caller ids.ShortID, swapID uint64, secret []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.redeemSwap(caller, swapID, secret); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) redeemSwap(caller ids.ShortID, swapID uint64, secret []byte) error {
	swap, err := c.state.GetSwap(swapID)
	if err != nil {
		return err
	}
	if swap.Status != SwapFunded {
		return errInvalidState
	}
	if caller != swap.Participant {
		return errUnauthorized
	}
	now := c.clock.Unix()
	if now > swap.Timeout {
		return errExpired
	}
	if err := verifySecret(secret, swap.SecretHash); err != nil {
		return err
	}

	swap.Secret = secret
	swap.Status = SwapRedeemed
	swap.CompletedAt = now
	if err := c.state.PutSwap(swap); err != nil {
		return err
	}
	if err := c.state.RemoveActiveSwap(swapID); err != nil {
		return err
	}

	log.Info("swap redeemed", "swapID", swapID, "participant", caller)
	return nil
}

// RefundSwap returns a funded swap to its initiator after the timeout.
func (c *Coordinator) RefundSwap(caller ids.ShortID, swapID uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.refundSwap(caller, swapID); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) refundSwap(caller ids.ShortID, swapID uint64) error {
	swap, err := c.state.GetSwap(swapID)
	if err != nil {
		return err
	}
	if swap.Status != SwapFunded {
		return errInvalidState
	}
	if caller != swap.Initiator {
		return errUnauthorized
	}
	now := c.clock.Unix()
	if now <= swap.Timeout {
		return errNotYetExpired
	}

	swap.Status = SwapRefunded
	swap.CompletedAt = now
	if err := c.state.PutSwap(swap); err != nil {
		return err
	}
	if err := c.state.RemoveActiveSwap(swapID); err != nil {
		return err
	}

	log.Info("swap refunded", "swapID", swapID, "initiator", caller)
	return nil
}

// CancelSwap moves a non-terminal swap to Cancelled. The authority may
// cancel at any time; the initiator may cancel a swap that never reached
// Funded once its timeout has passed, so unfunded swaps are not stranded.
func (c *Coordinator) CancelSwap(caller ids.ShortID, swapID uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.cancelSwap(caller, swapID); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) cancelSwap(caller ids.ShortID, swapID uint64) error {
	swap, err := c.state.GetSwap(swapID)
	if err != nil {
		return err
	}
	if swap.Status.Terminal() {
		return errInvalidState
	}

	authority, err := c.state.GetAuthority()
	if err != nil {
		return err
	}
	now := c.clock.Unix()
	initiatorReclaim := caller == swap.Initiator &&
		swap.Status == SwapInitiated &&
		now > swap.Timeout
	if caller != authority && !initiatorReclaim {
		return errUnauthorized
	}

	swap.Status = SwapCancelled
	swap.CompletedAt = now
	if err := c.state.PutSwap(swap); err != nil {
		return err
	}
	if err := c.state.RemoveActiveSwap(swapID); err != nil {
		return err
	}

	log.Info("swap cancelled", "swapID", swapID, "caller", caller)
	return nil
}

// ExpireSwaps sweeps the active set and moves Funded swaps past their
// timeout to Expired. Swaps still Initiated are left alone; the initiator
// reclaims those through CancelSwap. Callable by anyone; expiry is only
// ever evaluated on demand.
func (c *Coordinator) ExpireSwaps() ([]uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	expired, err := c.expireSwaps()
	if err != nil {
		c.state.Abort()
		return nil, err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return nil, err
	}
	return expired, nil
}

func (c *Coordinator) expireSwaps() ([]uint64, error) {
	active, err := c.state.ActiveSwaps()
	if err != nil {
		return nil, err
	}
	now := c.clock.Unix()

	expired := []uint64{}
	for _, swapID := range active {
		swap, err := c.state.GetSwap(swapID)
		if err != nil {
			return nil, err
		}
		if swap.Status != SwapFunded || now <= swap.Timeout {
			continue
		}
		swap.Status = SwapExpired
		swap.CompletedAt = now
		if err := c.state.PutSwap(swap); err != nil {
			return nil, err
		}
		if err := c.state.RemoveActiveSwap(swapID); err != nil {
			return nil, err
		}
		expired = append(expired, swapID)
	}
	if len(expired) > 0 {
		log.Info("swaps expired", "count", len(expired))
	}
	return expired, nil
}

// CreateProposal stores a signed swap offer and returns its id.
func (c *Coordinator) CreateProposal(caller ids.ShortID, proposed Swap, signature []byte) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return 0, err
	}
	id, err := c.createProposal(caller, proposed, signature)
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

func (c *Coordinator) createProposal(caller ids.ShortID, proposed Swap, signature []byte) (uint64, error) {
	if proposed.Initiator == proposed.Participant {
		return 0, errSameParty
	}

	last, err := c.state.LastProposalID()
	if err != nil {
		return 0, err
	}
	proposalID := last + 1

	proposal := &SwapProposal{
		ProposalID: proposalID,
		Proposer:   caller,
		Swap:       proposed,
		Signature:  signature,
		CreatedAt:  c.clock.Unix(),
	}
	if err := c.state.PutProposal(proposal); err != nil {
		return 0, err
	}
	if err := c.state.SetLastProposalID(proposalID); err != nil {
		return 0, err
	}

	log.Info("swap proposal created", "proposalID", proposalID, "proposer", caller)
	return proposalID, nil
}

// AcceptProposal turns a stored proposal into a live swap. Only the
// proposed participant may accept; the resulting swap is initiated on
// behalf of the proposed initiator with a fresh timeout window check.
func (c *Coordinator) AcceptProposal(caller ids.ShortID, proposalID uint64) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return 0, err
	}
	id, err := c.acceptProposal(caller, proposalID)
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

func (c *Coordinator) acceptProposal(caller ids.ShortID, proposalID uint64) (uint64, error) {
	proposal, err := c.state.GetProposal(proposalID)
	if err != nil {
		return 0, err
	}
	if caller != proposal.Swap.Participant {
		return 0, errUnauthorized
	}
	return c.initiateSwap(proposal.Swap.Initiator, InitiateSwapArgs{
		Participant: proposal.Swap.Participant,
		SourceChain: proposal.Swap.SourceChain,
		TargetChain: proposal.Swap.TargetChain,
		SourceAsset: proposal.Swap.SourceAsset,
		TargetAsset: proposal.Swap.TargetAsset,
		SecretHash:  proposal.Swap.SecretHash,
		Timeout:     proposal.Swap.Timeout,
	})
}

// GetSwap returns the stored swap.
func (c *Coordinator) GetSwap(swapID uint64) (*Swap, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetSwap(swapID)
}

// GetProposal returns the stored proposal.
func (c *Coordinator) GetProposal(proposalID uint64) (*SwapProposal, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetProposal(proposalID)
}

// ActiveSwaps returns the ids of all swaps still in the active set,
// ascending.
func (c *Coordinator) ActiveSwaps() ([]uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.ActiveSwaps()
}

// UserSwaps returns every swap in which [user] is a party.
func (c *Coordinator) UserSwaps(user ids.ShortID) ([]*Swap, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	last, err := c.state.LastSwapID()
	if err != nil {
		return nil, err
	}
	swaps := []*Swap{}
	for id := uint64(1); id <= last; id++ {
		swap, err := c.state.GetSwap(id)
		if err != nil {
			return nil, err
		}
		if swap.IsParty(user) {
			swaps = append(swaps, swap)
		}
	}
	return swaps, nil
}

// SwapCount returns the number of swaps ever initiated.
func (c *Coordinator) SwapCount() (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.LastSwapID()
}
