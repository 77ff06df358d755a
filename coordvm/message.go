// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"
)

// MessageType tags the payload semantics of a cross-chain message.
type MessageType uint8

const (
	MessageProofVerification MessageType = iota
	MessageAssetTransfer
	MessageAtomicSwap
	MessageGeneric
)

func (t MessageType) String() string {
	switch t {
	case MessageProofVerification:
		return "ProofVerification"
	case MessageAssetTransfer:
		return "AssetTransfer"
	case MessageAtomicSwap:
		return "AtomicSwap"
	case MessageGeneric:
		return "Generic"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// MessageStatus tracks a message from submission to settlement.
type MessageStatus uint8

const (
	MessagePending MessageStatus = iota
	MessageInTransit
	MessageDelivered
	MessageExecuted
	MessageFailed
	MessageExpired
	MessageCancelled
)

func (s MessageStatus) String() string {
	switch s {
	case MessagePending:
		return "Pending"
	case MessageInTransit:
		return "InTransit"
	case MessageDelivered:
		return "Delivered"
	case MessageExecuted:
		return "Executed"
	case MessageFailed:
		return "Failed"
	case MessageExpired:
		return "Expired"
	case MessageCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s MessageStatus) Terminal() bool {
	switch s {
	case MessageExecuted, MessageFailed, MessageExpired, MessageCancelled:
		return true
	default:
		return false
	}
}

// CrossChainMessage is a routed payload between two chains. RelayedBy is
// the id of the relayer that picked the message up (zero until relayed).
type CrossChainMessage struct {
	MessageID   uint64        `serialize:"true" json:"messageID"`
	SourceChain uint32        `serialize:"true" json:"sourceChain"`
	TargetChain uint32        `serialize:"true" json:"targetChain"`
	Sender      ids.ShortID   `serialize:"true" json:"sender"`
	Recipient   ids.ShortID   `serialize:"true" json:"recipient"`
	Kind        MessageType   `serialize:"true" json:"kind"`
	Payload     []byte        `serialize:"true" json:"payload"`
	Nonce       uint64        `serialize:"true" json:"nonce"`
	Signature   []byte        `serialize:"true" json:"signature"`
	Status      MessageStatus `serialize:"true" json:"status"`
	CreatedAt   uint64        `serialize:"true" json:"createdAt"`

	RelayedBy  uint64 `serialize:"true" json:"relayedBy"`
	RelayedAt  uint64 `serialize:"true" json:"relayedAt"`
	RelayProof []byte `serialize:"true" json:"relayProof"`

	ExecutedAt uint64 `serialize:"true" json:"executedAt"`
	GasUsed    uint64 `serialize:"true" json:"gasUsed"`
	Result     []byte `serialize:"true" json:"result"`
}

// Relayer transports messages between chains for a fee. AvgGasUsed is the
// incrementally maintained mean over executed relays.
type Relayer struct {
	RelayerID       uint64      `serialize:"true" json:"relayerID"`
	Address         ids.ShortID `serialize:"true" json:"address"`
	SupportedChains []uint32    `serialize:"true" json:"supportedChains"`
	FeePercentage   uint32      `serialize:"true" json:"feePercentage"`
	Active          bool        `serialize:"true" json:"active"`
	TotalMessages   uint64      `serialize:"true" json:"totalMessages"`
	SuccessCount    uint64      `serialize:"true" json:"successCount"`
	AvgGasUsed      uint64      `serialize:"true" json:"avgGasUsed"`
}

// Supports reports whether the relayer serves [chainID].
func (r *Relayer) Supports(chainID uint32) bool {
	for _, supported := range r.SupportedChains {
		if supported == chainID {
			return true
		}
	}
	return false
}

// ChainStats aggregates per-chain delivery accounting.
type ChainStats struct {
	ChainID      uint32 `serialize:"true" json:"chainID"`
	MessageCount uint64 `serialize:"true" json:"messageCount"`
	SuccessCount uint64 `serialize:"true" json:"successCount"`
	AvgGasUsed   uint64 `serialize:"true" json:"avgGasUsed"`
}

// SendMessageArgs carries the caller-supplied fields of a new message.
type SendMessageArgs struct {
	TargetChain uint32
	Recipient   ids.ShortID
	Kind        MessageType
	Payload     []byte
	Signature   []byte
}

// SendMessage enqueues a message to [args.TargetChain]. The target must be
// a configured, active chain; the source chain is the coordinator's own.
func (c *Coordinator) SendMessage(caller ids.ShortID, args SendMessageArgs) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return 0, err
	}
	id, err := c.sendMessage(caller, args)
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

// BatchSendMessages enqueues the batch in order, atomically: either every
// message is accepted or none is.
func (c *Coordinator) BatchSendMessages(caller ids.ShortID, batch []SendMessageArgs) ([]uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	messageIDs := make([]uint64, 0, len(batch))
	for _, args := range batch {
		id, err := c.sendMessage(caller, args)
		if err != nil {
			c.state.Abort()
			return nil, err
		}
		messageIDs = append(messageIDs, id)
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return nil, err
	}
	return messageIDs, nil
}

func (c *Coordinator) sendMessage(caller ids.ShortID, args SendMessageArgs) (uint64, error) {
	if len(args.Payload) == 0 {
		return 0, errEmptyPayload
	}
	chain, err := c.state.GetChainConfig(args.TargetChain)
	if err != nil {
		return 0, err
	}
	if !chain.Active {
		return 0, errUnsupportedChain
	}

	last, err := c.state.LastMessageID()
	if err != nil {
		return 0, err
	}
	messageID := last + 1

	msg := &CrossChainMessage{
		MessageID:   messageID,
		SourceChain: c.cfg.LocalChain,
		TargetChain: args.TargetChain,
		Sender:      caller,
		Recipient:   args.Recipient,
		Kind:        args.Kind,
		Payload:     args.Payload,
		Nonce:       last,
		Signature:   args.Signature,
		Status:      MessagePending,
		CreatedAt:   c.clock.Unix(),
	}
	if err := c.state.PutMessage(msg); err != nil {
		return 0, err
	}
	if err := c.state.SetLastMessageID(messageID); err != nil {
		return 0, err
	}
	if err := c.state.AddPendingMessage(messageID); err != nil {
		return 0, err
	}

	log.Info("message queued", "messageID", messageID, "sender", caller, "targetChain", args.TargetChain, "kind", msg.Kind)
	return messageID, nil
}

// RelayMessage attaches relay evidence and moves a pending message into
// transit. The caller must be a registered, active relayer that supports
// the message's target chain.
func (c *Coordinator) RelayMessage(caller ids.ShortID, messageID uint64, relayProof []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.relayMessage(caller, messageID, relayProof); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) relayMessage(caller ids.ShortID, messageID uint64, relayProof []byte) error {
	relayer, err := c.state.GetRelayerByAddress(caller)
	if err != nil {
		return err
	}
	if !relayer.Active {
		return errRelayerInactive
	}

	msg, err := c.state.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg.Status != MessagePending {
		return errInvalidState
	}
	if !relayer.Supports(msg.TargetChain) {
		return errChainNotRelayable
	}

	msg.Status = MessageInTransit
	msg.RelayedBy = relayer.RelayerID
	msg.RelayedAt = c.clock.Unix()
	msg.RelayProof = relayProof
	if err := c.state.PutMessage(msg); err != nil {
		return err
	}
	if err := c.state.RemovePendingMessage(messageID); err != nil {
		return err
	}

	log.Info("message in transit", "messageID", messageID, "relayer", relayer.RelayerID)
	return nil
}

// DeliverMessage records delivery evidence on the target chain without an
// execution result. Only the relaying relayer may deliver.
func (c *Coordinator) DeliverMessage(caller ids.ShortID, messageID uint64, deliveryProof []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.deliverMessage(caller, messageID, deliveryProof); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) deliverMessage(caller ids.ShortID, messageID uint64, deliveryProof []byte) error {
	msg, err := c.state.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg.Status != MessageInTransit {
		return errInvalidState
	}
	relayer, err := c.state.GetRelayerByAddress(caller)
	if err != nil {
		return err
	}
	if relayer.RelayerID != msg.RelayedBy {
		return errUnauthorized
	}
	if len(deliveryProof) == 0 {
		return errEmptyPayload
	}

	msg.Status = MessageDelivered
	msg.RelayProof = deliveryProof
	if err := c.state.PutMessage(msg); err != nil {
		return err
	}

	log.Info("message delivered", "messageID", messageID, "relayer", relayer.RelayerID)
	return nil
}

// ExecuteMessage applies the payload's outcome against the target
// semantics: the relaying relayer reports success or failure along with
// the resource cost, and per-relayer and per-chain statistics roll the
// new sample into their running averages.
func (c *Coordinator) ExecuteMessage(caller ids.ShortID, messageID uint64, result []byte, gasUsed uint64, success bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.executeMessage(caller, messageID, result, gasUsed, success); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) executeMessage(caller ids.ShortID, messageID uint64, result []byte, gasUsed uint64, success bool) error {
	msg, err := c.state.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg.Status != MessageInTransit && msg.Status != MessageDelivered {
		return errInvalidState
	}
	relayer, err := c.state.GetRelayerByAddress(caller)
	if err != nil {
		return err
	}
	if relayer.RelayerID != msg.RelayedBy {
		return errUnauthorized
	}

	if success {
		msg.Status = MessageExecuted
	} else {
		msg.Status = MessageFailed
	}
	msg.ExecutedAt = c.clock.Unix()
	msg.GasUsed = gasUsed
	msg.Result = result
	if err := c.state.PutMessage(msg); err != nil {
		return err
	}

	relayer.AvgGasUsed = rollAverage(relayer.AvgGasUsed, relayer.TotalMessages, gasUsed)
	relayer.TotalMessages++
	if success {
		relayer.SuccessCount++
	}
	if err := c.state.PutRelayer(relayer); err != nil {
		return err
	}

	stats, err := c.state.GetChainStats(msg.TargetChain)
	if err != nil {
		return err
	}
	stats.AvgGasUsed = rollAverage(stats.AvgGasUsed, stats.MessageCount, gasUsed)
	stats.MessageCount++
	if success {
		stats.SuccessCount++
	}
	if err := c.state.PutChainStats(stats); err != nil {
		return err
	}

	log.Info("message executed", "messageID", messageID, "status", msg.Status, "gasUsed", gasUsed)
	return nil
}

// rollAverage folds [sample] into a running mean over [n] prior samples.
// Computed incrementally; the naive (oldAvg*n+sample)/(n+1) overflows
// uint64 once a relayer accumulates enough high-gas samples.
func rollAverage(oldAvg uint64, n uint64, sample uint64) uint64 {
	if sample >= oldAvg {
		return oldAvg + (sample-oldAvg)/(n+1)
	}
	return oldAvg - (oldAvg-sample)/(n+1)
}

// ExpireMessages sweeps the pending index and expires messages older than
// the configured timeout. Callable by anyone; a second sweep with no time
// advance is a no-op.
func (c *Coordinator) ExpireMessages() ([]uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	expired, err := c.expireMessages()
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

func (c *Coordinator) expireMessages() ([]uint64, error) {
	pending, err := c.state.PendingMessages()
	if err != nil {
		return nil, err
	}
	now := c.clock.Unix()

	expired := []uint64{}
	for _, messageID := range pending {
		msg, err := c.state.GetMessage(messageID)
		if err != nil {
			return nil, err
		}
		if now <= msg.CreatedAt+c.cfg.MessageTimeout {
			continue
		}
		msg.Status = MessageExpired
		if err := c.state.PutMessage(msg); err != nil {
			return nil, err
		}
		if err := c.state.RemovePendingMessage(messageID); err != nil {
			return nil, err
		}
		expired = append(expired, messageID)
	}
	if len(expired) > 0 {
		log.Info("messages expired", "count", len(expired))
	}
	return expired, nil
}

// CancelMessage moves a non-terminal message to Cancelled. Authority only.
func (c *Coordinator) CancelMessage(caller ids.ShortID, messageID uint64) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.cancelMessage(caller, messageID); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) cancelMessage(caller ids.ShortID, messageID uint64) error {
	if err := c.ensureAuthority(caller); err != nil {
		return err
	}
	msg, err := c.state.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg.Status.Terminal() {
		return errInvalidState
	}

	wasPending := msg.Status == MessagePending
	msg.Status = MessageCancelled
	if err := c.state.PutMessage(msg); err != nil {
		return err
	}
	if wasPending {
		if err := c.state.RemovePendingMessage(messageID); err != nil {
			return err
		}
	}

	log.Info("message cancelled", "messageID", messageID)
	return nil
}

// RegisterRelayer registers a relayer for the given chains. Authority only.
func (c *Coordinator) RegisterRelayer(caller ids.ShortID, address ids.ShortID, supportedChains []uint32, feePercentage uint32) (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return 0, err
	}
	id, err := c.registerRelayer(caller, address, supportedChains, feePercentage)
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

func (c *Coordinator) registerRelayer(caller ids.ShortID, address ids.ShortID, supportedChains []uint32, feePercentage uint32) (uint64, error) {
	if err := c.ensureAuthority(caller); err != nil {
		return 0, err
	}
	if len(supportedChains) == 0 {
		return 0, errNoChains
	}

	last, err := c.state.LastRelayerID()
	if err != nil {
		return 0, err
	}
	relayerID := last + 1

	relayer := &Relayer{
		RelayerID:       relayerID,
		Address:         address,
		SupportedChains: supportedChains,
		FeePercentage:   feePercentage,
		Active:          true,
	}
	if err := c.state.PutRelayer(relayer); err != nil {
		return 0, err
	}
	if err := c.state.SetLastRelayerID(relayerID); err != nil {
		return 0, err
	}

	log.Info("relayer registered", "relayerID", relayerID, "address", address)
	return relayerID, nil
}

// SetRelayerActive flips a relayer's active flag. Authority only.
func (c *Coordinator) SetRelayerActive(caller ids.ShortID, relayerID uint64, active bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.setRelayerActive(caller, relayerID, active); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) setRelayerActive(caller ids.ShortID, relayerID uint64, active bool) error {
	if err := c.ensureAuthority(caller); err != nil {
		return err
	}
	relayer, err := c.state.GetRelayer(relayerID)
	if err != nil {
		return err
	}
	relayer.Active = active
	return c.state.PutRelayer(relayer)
}

// GetMessage returns the stored message.
func (c *Coordinator) GetMessage(messageID uint64) (*CrossChainMessage, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetMessage(messageID)
}

// PendingMessages returns the ids of all undelivered pending messages,
// ascending.
func (c *Coordinator) PendingMessages() ([]uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.PendingMessages()
}

// MessagesForRecipient returns up to [limit] messages addressed to
// [recipient], oldest first.
func (c *Coordinator) MessagesForRecipient(recipient ids.ShortID, limit int) ([]*CrossChainMessage, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	clamped := clampLimit(limit)
	last, err := c.state.LastMessageID()
	if err != nil {
		return nil, err
	}
	msgs := []*CrossChainMessage{}
	for id := uint64(1); id <= last && len(msgs) < clamped; id++ {
		msg, err := c.state.GetMessage(id)
		if err != nil {
			return nil, err
		}
		if msg.Recipient == recipient {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

// MessagesByType returns up to [limit] messages whose payload kind is
// [kind], oldest first.
func (c *Coordinator) MessagesByType(kind MessageType, limit int) ([]*CrossChainMessage, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	clamped := clampLimit(limit)
	last, err := c.state.LastMessageID()
	if err != nil {
		return nil, err
	}
	msgs := []*CrossChainMessage{}
	for id := uint64(1); id <= last && len(msgs) < clamped; id++ {
		msg, err := c.state.GetMessage(id)
		if err != nil {
			return nil, err
		}
		if msg.Kind == kind {
			msgs = append(msgs, msg)
		}
	}
	return msgs, nil
}

// GetRelayer returns the stored relayer.
func (c *Coordinator) GetRelayer(relayerID uint64) (*Relayer, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetRelayer(relayerID)
}

// MessageCount returns the number of messages ever sent.
func (c *Coordinator) MessageCount() (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.LastMessageID()
}

// RelayerCount returns the number of relayers ever registered.
func (c *Coordinator) RelayerCount() (uint64, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.LastRelayerID()
}

// ChainStatistics returns the accumulated delivery stats for [chainID].
func (c *Coordinator) ChainStatistics(chainID uint32) (*ChainStats, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetChainStats(chainID)
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	default:
		return limit
	}
}
