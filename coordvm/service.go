// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

// Service is the API service for the coordinator. Callers are identified
// by the address field of each request; authenticating that the request
// really comes from that address is the transport's concern.
type Service struct {
	Coordinator *Coordinator
}

// AssetJSON is the API form of an asset descriptor.
type AssetJSON struct {
	Address  string       `json:"address"`
	Amount   cjson.Uint64 `json:"amount"`
	Decimals cjson.Uint8  `json:"decimals"`
}

func (a *AssetJSON) toAsset() (Asset, error) {
	address, err := formatting.Decode(formatting.Hex, a.Address)
	if err != nil {
		return Asset{}, fmt.Errorf("couldn't decode asset address: %w", err)
	}
	return Asset{
		Address:  address,
		Amount:   uint64(a.Amount),
		Decimals: uint8(a.Decimals),
	}, nil
}

func assetJSON(a Asset) AssetJSON {
	address, _ := formatting.EncodeWithChecksum(formatting.Hex, a.Address)
	return AssetJSON{
		Address:  address,
		Amount:   cjson.Uint64(a.Amount),
		Decimals: cjson.Uint8(a.Decimals),
	}
}

// InitializeArgs ...
type InitializeArgs struct {
	Authority string `json:"authority"`
	Config    string `json:"config"`
}

// Initialize sets the coordinator's authority and policy config.
func (s *Service) Initialize(_ *http.Request, args *InitializeArgs, reply *api.SuccessResponse) error {
	authority, err := ids.ShortFromString(args.Authority)
	if err != nil {
		return fmt.Errorf("couldn't parse authority: %w", err)
	}
	if err := s.Coordinator.Initialize(authority, []byte(args.Config)); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// InitiateSwapServiceArgs ...
type InitiateSwapServiceArgs struct {
	Caller      string       `json:"caller"`
	Participant string       `json:"participant"`
	SourceChain cjson.Uint32 `json:"sourceChain"`
	TargetChain cjson.Uint32 `json:"targetChain"`
	SourceAsset AssetJSON    `json:"sourceAsset"`
	TargetAsset AssetJSON    `json:"targetAsset"`
	SecretHash  string       `json:"secretHash"`
	Timeout     cjson.Uint64 `json:"timeout"`
}

// InitiateSwapReply ...
type InitiateSwapReply struct {
	SwapID cjson.Uint64 `json:"swapID"`
}

// InitiateSwap opens a new swap and returns its id.
func (s *Service) InitiateSwap(_ *http.Request, args *InitiateSwapServiceArgs, reply *InitiateSwapReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	participant, err := ids.ShortFromString(args.Participant)
	if err != nil {
		return fmt.Errorf("couldn't parse participant: %w", err)
	}
	secretHash, err := ids.FromString(args.SecretHash)
	if err != nil {
		return fmt.Errorf("couldn't parse secret hash: %w", err)
	}
	sourceAsset, err := args.SourceAsset.toAsset()
	if err != nil {
		return err
	}
	targetAsset, err := args.TargetAsset.toAsset()
	if err != nil {
		return err
	}

	swapID, err := s.Coordinator.InitiateSwap(caller, InitiateSwapArgs{
		Participant: participant,
		SourceChain: uint32(args.SourceChain),
		TargetChain: uint32(args.TargetChain),
		SourceAsset: sourceAsset,
		TargetAsset: targetAsset,
		SecretHash:  secretHash,
		Timeout:     uint64(args.Timeout),
	})
	if err != nil {
		return err
	}
	reply.SwapID = cjson.Uint64(swapID)
	return nil
}

// FundSwapArgs ...
type FundSwapArgs struct {
	Caller         string       `json:"caller"`
	SwapID         cjson.Uint64 `json:"swapID"`
	TxHash         string       `json:"txHash"`
	BlockNumber    cjson.Uint64 `json:"blockNumber"`
	InclusionProof string       `json:"inclusionProof"`
}

// FundSwapReply ...
type FundSwapReply struct {
	Status string `json:"status"`
}

// FundSwap records the caller's deposit evidence for a swap.
func (s *Service) FundSwap(_ *http.Request, args *FundSwapArgs, reply *FundSwapReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	txHash, err := ids.FromString(args.TxHash)
	if err != nil {
		return fmt.Errorf("couldn't parse tx hash: %w", err)
	}
	inclusionProof, err := formatting.Decode(formatting.Hex, args.InclusionProof)
	if err != nil {
		return fmt.Errorf("couldn't decode inclusion proof: %w", err)
	}

	status, err := s.Coordinator.FundSwap(caller, uint64(args.SwapID), Deposit{
		TxHash:         txHash,
		BlockNumber:    uint64(args.BlockNumber),
		ConfirmedAt:    s.Coordinator.clock.Unix(),
		InclusionProof: inclusionProof,
	})
	if err != nil {
		return err
	}
	reply.Status = status.String()
	return nil
}

// RedeemSwapArgs ...
type RedeemSwapArgs struct {
	Caller string       `json:"caller"`
	SwapID cjson.Uint64 `json:"swapID"`
	Secret string       `json:"secret"`
}

// RedeemSwap reveals the secret and completes the swap.
func (s *Service) RedeemSwap(_ *http.Request, args *RedeemSwapArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	secret, err := formatting.Decode(formatting.Hex, args.Secret)
	if err != nil {
		return fmt.Errorf("couldn't decode secret: %w", err)
	}
	if err := s.Coordinator.RedeemSwap(caller, uint64(args.SwapID), secret); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// SwapIDArgs is a request identified by caller and swap id.
type SwapIDArgs struct {
	Caller string       `json:"caller"`
	SwapID cjson.Uint64 `json:"swapID"`
}

// RefundSwap returns a funded, timed-out swap to its initiator.
func (s *Service) RefundSwap(_ *http.Request, args *SwapIDArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	if err := s.Coordinator.RefundSwap(caller, uint64(args.SwapID)); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// CancelSwap cancels a non-terminal swap.
func (s *Service) CancelSwap(_ *http.Request, args *SwapIDArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	if err := s.Coordinator.CancelSwap(caller, uint64(args.SwapID)); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// SweepReply lists the ids claimed by an expiry sweep.
type SweepReply struct {
	Expired []cjson.Uint64 `json:"expired"`
}

// ExpireSwaps runs the swap expiry sweep.
func (s *Service) ExpireSwaps(_ *http.Request, _ *struct{}, reply *SweepReply) error {
	expired, err := s.Coordinator.ExpireSwaps()
	if err != nil {
		return err
	}
	reply.Expired = packUint64JSON(expired)
	return nil
}

// SwapJSON is the API form of a swap record.
type SwapJSON struct {
	SwapID      cjson.Uint64 `json:"swapID"`
	Initiator   string       `json:"initiator"`
	Participant string       `json:"participant"`
	SourceChain cjson.Uint32 `json:"sourceChain"`
	TargetChain cjson.Uint32 `json:"targetChain"`
	SourceAsset AssetJSON    `json:"sourceAsset"`
	TargetAsset AssetJSON    `json:"targetAsset"`
	SecretHash  string       `json:"secretHash"`
	Secret      string       `json:"secret"`
	Status      string       `json:"status"`
	Timeout     cjson.Uint64 `json:"timeout"`
	CreatedAt   cjson.Uint64 `json:"createdAt"`
	CompletedAt cjson.Uint64 `json:"completedAt"`

	InitiatorFunded   bool `json:"initiatorFunded"`
	ParticipantFunded bool `json:"participantFunded"`
}

func swapJSON(swap *Swap) SwapJSON {
	secret, _ := formatting.EncodeWithChecksum(formatting.Hex, swap.Secret)
	return SwapJSON{
		SwapID:            cjson.Uint64(swap.SwapID),
		Initiator:         swap.Initiator.String(),
		Participant:       swap.Participant.String(),
		SourceChain:       cjson.Uint32(swap.SourceChain),
		TargetChain:       cjson.Uint32(swap.TargetChain),
		SourceAsset:       assetJSON(swap.SourceAsset),
		TargetAsset:       assetJSON(swap.TargetAsset),
		SecretHash:        swap.SecretHash.String(),
		Secret:            secret,
		Status:            swap.Status.String(),
		Timeout:           cjson.Uint64(swap.Timeout),
		CreatedAt:         cjson.Uint64(swap.CreatedAt),
		CompletedAt:       cjson.Uint64(swap.CompletedAt),
		InitiatorFunded:   swap.InitiatorDeposit.Present,
		ParticipantFunded: swap.ParticipantDeposit.Present,
	}
}

// GetSwapArgs ...
type GetSwapArgs struct {
	SwapID cjson.Uint64 `json:"swapID"`
}

// GetSwapReply ...
type GetSwapReply struct {
	Swap SwapJSON `json:"swap"`
}

// GetSwap returns the swap with the given id.
func (s *Service) GetSwap(_ *http.Request, args *GetSwapArgs, reply *GetSwapReply) error {
	swap, err := s.Coordinator.GetSwap(uint64(args.SwapID))
	if err != nil {
		return err
	}
	reply.Swap = swapJSON(swap)
	return nil
}

// ActiveSwapsReply ...
type ActiveSwapsReply struct {
	SwapIDs []cjson.Uint64 `json:"swapIDs"`
}

// ActiveSwaps returns the ids of all open swaps.
func (s *Service) ActiveSwaps(_ *http.Request, _ *struct{}, reply *ActiveSwapsReply) error {
	active, err := s.Coordinator.ActiveSwaps()
	if err != nil {
		return err
	}
	reply.SwapIDs = packUint64JSON(active)
	return nil
}

// UserSwapsArgs ...
type UserSwapsArgs struct {
	User string `json:"user"`
}

// UserSwapsReply ...
type UserSwapsReply struct {
	Swaps []SwapJSON `json:"swaps"`
}

// UserSwaps returns every swap the user participates in.
func (s *Service) UserSwaps(_ *http.Request, args *UserSwapsArgs, reply *UserSwapsReply) error {
	user, err := ids.ShortFromString(args.User)
	if err != nil {
		return fmt.Errorf("couldn't parse user: %w", err)
	}
	swaps, err := s.Coordinator.UserSwaps(user)
	if err != nil {
		return err
	}
	reply.Swaps = make([]SwapJSON, len(swaps))
	for i, swap := range swaps {
		reply.Swaps[i] = swapJSON(swap)
	}
	return nil
}

// SendMessageServiceArgs ...
type SendMessageServiceArgs struct {
	Caller      string       `json:"caller"`
	TargetChain cjson.Uint32 `json:"targetChain"`
	Recipient   string       `json:"recipient"`
	Kind        cjson.Uint8  `json:"kind"`
	Payload     string       `json:"payload"`
	Signature   string       `json:"signature"`
}

// SendMessageReply ...
type SendMessageReply struct {
	MessageID cjson.Uint64 `json:"messageID"`
}

// SendMessage enqueues a cross-chain message.
func (s *Service) SendMessage(_ *http.Request, args *SendMessageServiceArgs, reply *SendMessageReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	recipient, err := ids.ShortFromString(args.Recipient)
	if err != nil {
		return fmt.Errorf("couldn't parse recipient: %w", err)
	}
	payload, err := formatting.Decode(formatting.Hex, args.Payload)
	if err != nil {
		return fmt.Errorf("couldn't decode payload: %w", err)
	}
	signature, err := formatting.Decode(formatting.Hex, args.Signature)
	if err != nil {
		return fmt.Errorf("couldn't decode signature: %w", err)
	}

	messageID, err := s.Coordinator.SendMessage(caller, SendMessageArgs{
		TargetChain: uint32(args.TargetChain),
		Recipient:   recipient,
		Kind:        MessageType(args.Kind),
		Payload:     payload,
		Signature:   signature,
	})
	if err != nil {
		return err
	}
	reply.MessageID = cjson.Uint64(messageID)
	return nil
}

// RelayMessageArgs ...
type RelayMessageArgs struct {
	Caller     string       `json:"caller"`
	MessageID  cjson.Uint64 `json:"messageID"`
	RelayProof string       `json:"relayProof"`
}

// RelayMessage picks a pending message up for transport.
func (s *Service) RelayMessage(_ *http.Request, args *RelayMessageArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	relayProof, err := formatting.Decode(formatting.Hex, args.RelayProof)
	if err != nil {
		return fmt.Errorf("couldn't decode relay proof: %w", err)
	}
	if err := s.Coordinator.RelayMessage(caller, uint64(args.MessageID), relayProof); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// DeliverMessage records target-chain delivery evidence.
func (s *Service) DeliverMessage(_ *http.Request, args *RelayMessageArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	deliveryProof, err := formatting.Decode(formatting.Hex, args.RelayProof)
	if err != nil {
		return fmt.Errorf("couldn't decode delivery proof: %w", err)
	}
	if err := s.Coordinator.DeliverMessage(caller, uint64(args.MessageID), deliveryProof); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// ExecuteMessageArgs ...
type ExecuteMessageArgs struct {
	Caller    string       `json:"caller"`
	MessageID cjson.Uint64 `json:"messageID"`
	Result    string       `json:"result"`
	GasUsed   cjson.Uint64 `json:"gasUsed"`
	Success   bool         `json:"success"`
}

// ExecuteMessage records the payload's execution outcome.
func (s *Service) ExecuteMessage(_ *http.Request, args *ExecuteMessageArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	result, err := formatting.Decode(formatting.Hex, args.Result)
	if err != nil {
		return fmt.Errorf("couldn't decode result: %w", err)
	}
	if err := s.Coordinator.ExecuteMessage(caller, uint64(args.MessageID), result, uint64(args.GasUsed), args.Success); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// ExpireMessages runs the message expiry sweep.
func (s *Service) ExpireMessages(_ *http.Request, _ *struct{}, reply *SweepReply) error {
	expired, err := s.Coordinator.ExpireMessages()
	if err != nil {
		return err
	}
	reply.Expired = packUint64JSON(expired)
	return nil
}

// MessageIDArgs ...
type MessageIDArgs struct {
	Caller    string       `json:"caller"`
	MessageID cjson.Uint64 `json:"messageID"`
}

// CancelMessage cancels a non-terminal message.
func (s *Service) CancelMessage(_ *http.Request, args *MessageIDArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	if err := s.Coordinator.CancelMessage(caller, uint64(args.MessageID)); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// MessageJSON is the API form of a message record.
type MessageJSON struct {
	MessageID   cjson.Uint64 `json:"messageID"`
	SourceChain cjson.Uint32 `json:"sourceChain"`
	TargetChain cjson.Uint32 `json:"targetChain"`
	Sender      string       `json:"sender"`
	Recipient   string       `json:"recipient"`
	Kind        string       `json:"kind"`
	Payload     string       `json:"payload"`
	Nonce       cjson.Uint64 `json:"nonce"`
	Status      string       `json:"status"`
	CreatedAt   cjson.Uint64 `json:"createdAt"`
	RelayedBy   cjson.Uint64 `json:"relayedBy"`
	RelayedAt   cjson.Uint64 `json:"relayedAt"`
	ExecutedAt  cjson.Uint64 `json:"executedAt"`
	GasUsed     cjson.Uint64 `json:"gasUsed"`
	Result      string       `json:"result"`
}

func messageJSON(msg *CrossChainMessage) MessageJSON {
	payload, _ := formatting.EncodeWithChecksum(formatting.Hex, msg.Payload)
	result, _ := formatting.EncodeWithChecksum(formatting.Hex, msg.Result)
	return MessageJSON{
		MessageID:   cjson.Uint64(msg.MessageID),
		SourceChain: cjson.Uint32(msg.SourceChain),
		TargetChain: cjson.Uint32(msg.TargetChain),
		Sender:      msg.Sender.String(),
		Recipient:   msg.Recipient.String(),
		Kind:        msg.Kind.String(),
		Payload:     payload,
		Nonce:       cjson.Uint64(msg.Nonce),
		Status:      msg.Status.String(),
		CreatedAt:   cjson.Uint64(msg.CreatedAt),
		RelayedBy:   cjson.Uint64(msg.RelayedBy),
		RelayedAt:   cjson.Uint64(msg.RelayedAt),
		ExecutedAt:  cjson.Uint64(msg.ExecutedAt),
		GasUsed:     cjson.Uint64(msg.GasUsed),
		Result:      result,
	}
}

// GetMessageArgs ...
type GetMessageArgs struct {
	MessageID cjson.Uint64 `json:"messageID"`
}

// GetMessageReply ...
type GetMessageReply struct {
	Message MessageJSON `json:"message"`
}

// GetMessage returns the message with the given id.
func (s *Service) GetMessage(_ *http.Request, args *GetMessageArgs, reply *GetMessageReply) error {
	msg, err := s.Coordinator.GetMessage(uint64(args.MessageID))
	if err != nil {
		return err
	}
	reply.Message = messageJSON(msg)
	return nil
}

// PendingMessagesReply ...
type PendingMessagesReply struct {
	MessageIDs []cjson.Uint64 `json:"messageIDs"`
}

// PendingMessages returns the ids of all pending messages.
func (s *Service) PendingMessages(_ *http.Request, _ *struct{}, reply *PendingMessagesReply) error {
	pending, err := s.Coordinator.PendingMessages()
	if err != nil {
		return err
	}
	reply.MessageIDs = packUint64JSON(pending)
	return nil
}

// RegisterRelayerArgs ...
type RegisterRelayerArgs struct {
	Caller          string         `json:"caller"`
	Address         string         `json:"address"`
	SupportedChains []cjson.Uint32 `json:"supportedChains"`
	FeePercentage   cjson.Uint32   `json:"feePercentage"`
}

// RegisterRelayerReply ...
type RegisterRelayerReply struct {
	RelayerID cjson.Uint64 `json:"relayerID"`
}

// RegisterRelayer registers a relayer. Authority only.
func (s *Service) RegisterRelayer(_ *http.Request, args *RegisterRelayerArgs, reply *RegisterRelayerReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	address, err := ids.ShortFromString(args.Address)
	if err != nil {
		return fmt.Errorf("couldn't parse relayer address: %w", err)
	}
	supportedChains := make([]uint32, len(args.SupportedChains))
	for i, chainID := range args.SupportedChains {
		supportedChains[i] = uint32(chainID)
	}

	relayerID, err := s.Coordinator.RegisterRelayer(caller, address, supportedChains, uint32(args.FeePercentage))
	if err != nil {
		return err
	}
	reply.RelayerID = cjson.Uint64(relayerID)
	return nil
}

// GetRelayerArgs ...
type GetRelayerArgs struct {
	RelayerID cjson.Uint64 `json:"relayerID"`
}

// RelayerJSON is the API form of a relayer record.
type RelayerJSON struct {
	RelayerID       cjson.Uint64   `json:"relayerID"`
	Address         string         `json:"address"`
	SupportedChains []cjson.Uint32 `json:"supportedChains"`
	FeePercentage   cjson.Uint32   `json:"feePercentage"`
	Active          bool           `json:"active"`
	TotalMessages   cjson.Uint64   `json:"totalMessages"`
	SuccessCount    cjson.Uint64   `json:"successCount"`
	AvgGasUsed      cjson.Uint64   `json:"avgGasUsed"`
}

// GetRelayerReply ...
type GetRelayerReply struct {
	Relayer RelayerJSON `json:"relayer"`
}

// GetRelayer returns the relayer with the given id.
func (s *Service) GetRelayer(_ *http.Request, args *GetRelayerArgs, reply *GetRelayerReply) error {
	relayer, err := s.Coordinator.GetRelayer(uint64(args.RelayerID))
	if err != nil {
		return err
	}
	supportedChains := make([]cjson.Uint32, len(relayer.SupportedChains))
	for i, chainID := range relayer.SupportedChains {
		supportedChains[i] = cjson.Uint32(chainID)
	}
	reply.Relayer = RelayerJSON{
		RelayerID:       cjson.Uint64(relayer.RelayerID),
		Address:         relayer.Address.String(),
		SupportedChains: supportedChains,
		FeePercentage:   cjson.Uint32(relayer.FeePercentage),
		Active:          relayer.Active,
		TotalMessages:   cjson.Uint64(relayer.TotalMessages),
		SuccessCount:    cjson.Uint64(relayer.SuccessCount),
		AvgGasUsed:      cjson.Uint64(relayer.AvgGasUsed),
	}
	return nil
}

// SubmitProofServiceArgs ...
type SubmitProofServiceArgs struct {
	Caller         string          `json:"caller"`
	SourceChain    cjson.Uint32    `json:"sourceChain"`
	TargetChain    cjson.Uint32    `json:"targetChain"`
	TxHash         string          `json:"txHash"`
	MerkleRoot     string          `json:"merkleRoot"`
	MerklePath     []ProofStepJSON `json:"merklePath"`
	Signature      string          `json:"signature"`
	BlockTimestamp cjson.Uint64    `json:"blockTimestamp"`
}

// ProofStepJSON is the API form of a merkle audit step.
type ProofStepJSON struct {
	Sibling string `json:"sibling"`
	Left    bool   `json:"left"`
}

// SubmitProofReply ...
type SubmitProofReply struct {
	ProofID cjson.Uint64 `json:"proofID"`
}

// SubmitProof stores remote-chain evidence for verification.
func (s *Service) SubmitProof(_ *http.Request, args *SubmitProofServiceArgs, reply *SubmitProofReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	txHash, err := ids.FromString(args.TxHash)
	if err != nil {
		return fmt.Errorf("couldn't parse tx hash: %w", err)
	}
	merkleRoot, err := ids.FromString(args.MerkleRoot)
	if err != nil {
		return fmt.Errorf("couldn't parse merkle root: %w", err)
	}
	merklePath := make([]ProofStep, len(args.MerklePath))
	for i, step := range args.MerklePath {
		sibling, err := ids.FromString(step.Sibling)
		if err != nil {
			return fmt.Errorf("couldn't parse merkle path step %d: %w", i, err)
		}
		merklePath[i] = ProofStep{Sibling: sibling, Left: step.Left}
	}
	signature, err := formatting.Decode(formatting.Hex, args.Signature)
	if err != nil {
		return fmt.Errorf("couldn't decode signature: %w", err)
	}

	proofID, err := s.Coordinator.SubmitProof(caller, SubmitProofArgs{
		SourceChain:    uint32(args.SourceChain),
		TargetChain:    uint32(args.TargetChain),
		TxHash:         txHash,
		MerkleRoot:     merkleRoot,
		MerklePath:     merklePath,
		Signature:      signature,
		BlockTimestamp: uint64(args.BlockTimestamp),
	})
	if err != nil {
		return err
	}
	reply.ProofID = cjson.Uint64(proofID)
	return nil
}

// RecordVerificationArgs ...
type RecordVerificationArgs struct {
	Caller  string       `json:"caller"`
	ProofID cjson.Uint64 `json:"proofID"`
}

// RecordVerificationReply ...
type RecordVerificationReply struct {
	Verdict string `json:"verdict"`
}

// RecordVerification verifies a stored proof and persists the verdict.
func (s *Service) RecordVerification(_ *http.Request, args *RecordVerificationArgs, reply *RecordVerificationReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	verdict, err := s.Coordinator.RecordVerification(caller, uint64(args.ProofID))
	if err != nil {
		return err
	}
	reply.Verdict = verdict.String()
	return nil
}

// BatchVerifyArgs ...
type BatchVerifyArgs struct {
	Caller   string         `json:"caller"`
	ProofIDs []cjson.Uint64 `json:"proofIDs"`
}

// BatchVerifyEntry ...
type BatchVerifyEntry struct {
	ProofID cjson.Uint64 `json:"proofID"`
	Verdict string       `json:"verdict"`
	Found   bool         `json:"found"`
}

// BatchVerifyReply ...
type BatchVerifyReply struct {
	Results []BatchVerifyEntry `json:"results"`
}

// BatchVerify verifies an ordered set of stored proofs.
func (s *Service) BatchVerify(_ *http.Request, args *BatchVerifyArgs, reply *BatchVerifyReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	proofIDs := make([]uint64, len(args.ProofIDs))
	for i, proofID := range args.ProofIDs {
		proofIDs[i] = uint64(proofID)
	}
	results, err := s.Coordinator.BatchVerify(caller, proofIDs)
	if err != nil {
		return err
	}
	reply.Results = make([]BatchVerifyEntry, len(results))
	for i, result := range results {
		reply.Results[i] = BatchVerifyEntry{
			ProofID: cjson.Uint64(result.ProofID),
			Verdict: result.Verdict.String(),
			Found:   result.Found,
		}
	}
	return nil
}

// GetVerificationArgs ...
type GetVerificationArgs struct {
	ProofID cjson.Uint64 `json:"proofID"`
}

// GetVerificationReply ...
type GetVerificationReply struct {
	ProofID    cjson.Uint64 `json:"proofID"`
	Verdict    string       `json:"verdict"`
	Verifier   string       `json:"verifier"`
	VerifiedAt cjson.Uint64 `json:"verifiedAt"`
}

// GetVerification returns the recorded verdict for a proof.
func (s *Service) GetVerification(_ *http.Request, args *GetVerificationArgs, reply *GetVerificationReply) error {
	verified, err := s.Coordinator.GetVerification(uint64(args.ProofID))
	if err != nil {
		return err
	}
	reply.ProofID = cjson.Uint64(verified.ProofID)
	reply.Verdict = verified.Verdict.String()
	reply.Verifier = verified.Verifier.String()
	reply.VerifiedAt = cjson.Uint64(verified.VerifiedAt)
	return nil
}

// IsFullyVerifiedReply ...
type IsFullyVerifiedReply struct {
	FullyVerified bool `json:"fullyVerified"`
}

// IsFullyVerified reports composite cross-chain verification.
func (s *Service) IsFullyVerified(_ *http.Request, args *GetVerificationArgs, reply *IsFullyVerifiedReply) error {
	ok, err := s.Coordinator.IsFullyVerified(uint64(args.ProofID))
	if err != nil {
		return err
	}
	reply.FullyVerified = ok
	return nil
}

// AddChainConfigArgs ...
type AddChainConfigArgs struct {
	Caller           string       `json:"caller"`
	ChainID          cjson.Uint32 `json:"chainID"`
	Name             string       `json:"name"`
	BridgeAddress    string       `json:"bridgeAddress"`
	MinConfirmations cjson.Uint32 `json:"minConfirmations"`
	BlockTime        cjson.Uint64 `json:"blockTime"`
	TrustLevel       cjson.Uint32 `json:"trustLevel"`
	Active           bool         `json:"active"`
}

// AddChainConfig adds or replaces a chain policy. Authority only.
func (s *Service) AddChainConfig(_ *http.Request, args *AddChainConfigArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	bridgeAddress, err := ids.ShortFromString(args.BridgeAddress)
	if err != nil {
		return fmt.Errorf("couldn't parse bridge address: %w", err)
	}
	if err := s.Coordinator.AddChainConfig(caller, ChainConfig{
		ChainID:          uint32(args.ChainID),
		Name:             args.Name,
		BridgeAddress:    bridgeAddress,
		MinConfirmations: uint32(args.MinConfirmations),
		BlockTime:        uint64(args.BlockTime),
		TrustLevel:       uint32(args.TrustLevel),
		Active:           args.Active,
	}); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// VerifierArgs ...
type VerifierArgs struct {
	Caller   string `json:"caller"`
	Verifier string `json:"verifier"`
}

// AddTrustedVerifier grants verification rights. Authority only.
func (s *Service) AddTrustedVerifier(_ *http.Request, args *VerifierArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	verifier, err := ids.ShortFromString(args.Verifier)
	if err != nil {
		return fmt.Errorf("couldn't parse verifier: %w", err)
	}
	if err := s.Coordinator.AddTrustedVerifier(caller, verifier); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// SetFeeRateArgs ...
type SetFeeRateArgs struct {
	Caller  string       `json:"caller"`
	FeeRate cjson.Uint32 `json:"feeRate"`
}

// SetFeeRate changes the relay fee rate. Authority only.
func (s *Service) SetFeeRate(_ *http.Request, args *SetFeeRateArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	if err := s.Coordinator.SetFeeRate(caller, uint32(args.FeeRate)); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// CreateProposalArgs ...
type CreateProposalArgs struct {
	Caller      string       `json:"caller"`
	Participant string       `json:"participant"`
	SourceChain cjson.Uint32 `json:"sourceChain"`
	TargetChain cjson.Uint32 `json:"targetChain"`
	SourceAsset AssetJSON    `json:"sourceAsset"`
	TargetAsset AssetJSON    `json:"targetAsset"`
	SecretHash  string       `json:"secretHash"`
	Timeout     cjson.Uint64 `json:"timeout"`
	Signature   string       `json:"signature"`
}

// CreateProposalReply ...
type CreateProposalReply struct {
	ProposalID cjson.Uint64 `json:"proposalID"`
}

// CreateProposal records a signed swap offer for later acceptance.
func (s *Service) CreateProposal(_ *http.Request, args *CreateProposalArgs, reply *CreateProposalReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	participant, err := ids.ShortFromString(args.Participant)
	if err != nil {
		return fmt.Errorf("couldn't parse participant: %w", err)
	}
	secretHash, err := ids.FromString(args.SecretHash)
	if err != nil {
		return fmt.Errorf("couldn't parse secret hash: %w", err)
	}
	sourceAsset, err := args.SourceAsset.toAsset()
	if err != nil {
		return err
	}
	targetAsset, err := args.TargetAsset.toAsset()
	if err != nil {
		return err
	}
	signature, err := formatting.Decode(formatting.Hex, args.Signature)
	if err != nil {
		return fmt.Errorf("couldn't decode signature: %w", err)
	}

	proposalID, err := s.Coordinator.CreateProposal(caller, Swap{
		Initiator:   caller,
		Participant: participant,
		SourceChain: uint32(args.SourceChain),
		TargetChain: uint32(args.TargetChain),
		SourceAsset: sourceAsset,
		TargetAsset: targetAsset,
		SecretHash:  secretHash,
		Timeout:     uint64(args.Timeout),
	}, signature)
	if err != nil {
		return err
	}
	reply.ProposalID = cjson.Uint64(proposalID)
	return nil
}

// AcceptProposalArgs ...
type AcceptProposalArgs struct {
	Caller     string       `json:"caller"`
	ProposalID cjson.Uint64 `json:"proposalID"`
}

// AcceptProposal turns a proposal into a live swap.
func (s *Service) AcceptProposal(_ *http.Request, args *AcceptProposalArgs, reply *InitiateSwapReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	swapID, err := s.Coordinator.AcceptProposal(caller, uint64(args.ProposalID))
	if err != nil {
		return err
	}
	reply.SwapID = cjson.Uint64(swapID)
	return nil
}

// GetProposalArgs ...
type GetProposalArgs struct {
	ProposalID cjson.Uint64 `json:"proposalID"`
}

// GetProposalReply ...
type GetProposalReply struct {
	ProposalID cjson.Uint64 `json:"proposalID"`
	Proposer   string       `json:"proposer"`
	Swap       SwapJSON     `json:"swap"`
	Signature  string       `json:"signature"`
	CreatedAt  cjson.Uint64 `json:"createdAt"`
}

// GetProposal returns the proposal with the given id.
func (s *Service) GetProposal(_ *http.Request, args *GetProposalArgs, reply *GetProposalReply) error {
	proposal, err := s.Coordinator.GetProposal(uint64(args.ProposalID))
	if err != nil {
		return err
	}
	signature, _ := formatting.EncodeWithChecksum(formatting.Hex, proposal.Signature)
	reply.ProposalID = cjson.Uint64(proposal.ProposalID)
	reply.Proposer = proposal.Proposer.String()
	reply.Swap = swapJSON(&proposal.Swap)
	reply.Signature = signature
	reply.CreatedAt = cjson.Uint64(proposal.CreatedAt)
	return nil
}

// BatchSendMessagesArgs ...
type BatchSendMessagesArgs struct {
	Caller   string `json:"caller"`
	Messages []struct {
		TargetChain cjson.Uint32 `json:"targetChain"`
		Recipient   string       `json:"recipient"`
		Kind        cjson.Uint8  `json:"kind"`
		Payload     string       `json:"payload"`
		Signature   string       `json:"signature"`
	} `json:"messages"`
}

// BatchSendMessagesReply ...
type BatchSendMessagesReply struct {
	MessageIDs []cjson.Uint64 `json:"messageIDs"`
}

// BatchSendMessages enqueues several messages at once. All of them are
// enqueued or none are.
func (s *Service) BatchSendMessages(_ *http.Request, args *BatchSendMessagesArgs, reply *BatchSendMessagesReply) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	batch := make([]SendMessageArgs, len(args.Messages))
	for i, msg := range args.Messages {
		recipient, err := ids.ShortFromString(msg.Recipient)
		if err != nil {
			return fmt.Errorf("couldn't parse recipient %d: %w", i, err)
		}
		payload, err := formatting.Decode(formatting.Hex, msg.Payload)
		if err != nil {
			return fmt.Errorf("couldn't decode payload %d: %w", i, err)
		}
		signature, err := formatting.Decode(formatting.Hex, msg.Signature)
		if err != nil {
			return fmt.Errorf("couldn't decode signature %d: %w", i, err)
		}
		batch[i] = SendMessageArgs{
			TargetChain: uint32(msg.TargetChain),
			Recipient:   recipient,
			Kind:        MessageType(msg.Kind),
			Payload:     payload,
			Signature:   signature,
		}
	}
	messageIDs, err := s.Coordinator.BatchSendMessages(caller, batch)
	if err != nil {
		return err
	}
	reply.MessageIDs = packUint64JSON(messageIDs)
	return nil
}

// MessagesForRecipientArgs ...
type MessagesForRecipientArgs struct {
	Recipient string       `json:"recipient"`
	Limit     cjson.Uint32 `json:"limit"`
}

// MessagesForRecipientReply ...
type MessagesForRecipientReply struct {
	Messages []MessageJSON `json:"messages"`
}

// MessagesForRecipient returns messages addressed to the recipient,
// oldest first, up to the requested limit.
func (s *Service) MessagesForRecipient(_ *http.Request, args *MessagesForRecipientArgs, reply *MessagesForRecipientReply) error {
	recipient, err := ids.ShortFromString(args.Recipient)
	if err != nil {
		return fmt.Errorf("couldn't parse recipient: %w", err)
	}
	msgs, err := s.Coordinator.MessagesForRecipient(recipient, int(args.Limit))
	if err != nil {
		return err
	}
	reply.Messages = make([]MessageJSON, len(msgs))
	for i, msg := range msgs {
		reply.Messages[i] = messageJSON(msg)
	}
	return nil
}

// MessagesByTypeArgs ...
type MessagesByTypeArgs struct {
	Kind  cjson.Uint8  `json:"kind"`
	Limit cjson.Uint32 `json:"limit"`
}

// MessagesByTypeReply ...
type MessagesByTypeReply struct {
	Messages []MessageJSON `json:"messages"`
}

// MessagesByType returns messages of the given payload kind, oldest
// first, up to the requested limit.
func (s *Service) MessagesByType(_ *http.Request, args *MessagesByTypeArgs, reply *MessagesByTypeReply) error {
	msgs, err := s.Coordinator.MessagesByType(MessageType(args.Kind), int(args.Limit))
	if err != nil {
		return err
	}
	reply.Messages = make([]MessageJSON, len(msgs))
	for i, msg := range msgs {
		reply.Messages[i] = messageJSON(msg)
	}
	return nil
}

// SetRelayerActiveArgs ...
type SetRelayerActiveArgs struct {
	Caller    string       `json:"caller"`
	RelayerID cjson.Uint64 `json:"relayerID"`
	Active    bool         `json:"active"`
}

// SetRelayerActive toggles a relayer. Authority only.
func (s *Service) SetRelayerActive(_ *http.Request, args *SetRelayerActiveArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	if err := s.Coordinator.SetRelayerActive(caller, uint64(args.RelayerID), args.Active); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// SetChainActiveArgs ...
type SetChainActiveArgs struct {
	Caller  string       `json:"caller"`
	ChainID cjson.Uint32 `json:"chainID"`
	Active  bool         `json:"active"`
}

// SetChainActive toggles a configured chain. Authority only.
func (s *Service) SetChainActive(_ *http.Request, args *SetChainActiveArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	if err := s.Coordinator.SetChainActive(caller, uint32(args.ChainID), args.Active); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// RemoveTrustedVerifier revokes verification rights. Authority only.
func (s *Service) RemoveTrustedVerifier(_ *http.Request, args *VerifierArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	verifier, err := ids.ShortFromString(args.Verifier)
	if err != nil {
		return fmt.Errorf("couldn't parse verifier: %w", err)
	}
	if err := s.Coordinator.RemoveTrustedVerifier(caller, verifier); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// OverrideVerdictArgs ...
type OverrideVerdictArgs struct {
	Caller  string       `json:"caller"`
	ProofID cjson.Uint64 `json:"proofID"`
	Verdict string       `json:"verdict"`
}

// OverrideVerdict replaces a recorded verdict. Authority only.
func (s *Service) OverrideVerdict(_ *http.Request, args *OverrideVerdictArgs, reply *api.SuccessResponse) error {
	caller, err := ids.ShortFromString(args.Caller)
	if err != nil {
		return fmt.Errorf("couldn't parse caller: %w", err)
	}
	verdict, err := ParseVerdict(args.Verdict)
	if err != nil {
		return err
	}
	if err := s.Coordinator.OverrideVerdict(caller, uint64(args.ProofID), verdict); err != nil {
		return err
	}
	reply.Success = true
	return nil
}

// GetProofArgs ...
type GetProofArgs struct {
	ProofID cjson.Uint64 `json:"proofID"`
}

// GetProofReply ...
type GetProofReply struct {
	ProofID        cjson.Uint64    `json:"proofID"`
	SourceChain    cjson.Uint32    `json:"sourceChain"`
	TargetChain    cjson.Uint32    `json:"targetChain"`
	TxHash         string          `json:"txHash"`
	MerkleRoot     string          `json:"merkleRoot"`
	MerklePath     []ProofStepJSON `json:"merklePath"`
	Signature      string          `json:"signature"`
	BlockTimestamp cjson.Uint64    `json:"blockTimestamp"`
	Submitter      string          `json:"submitter"`
	SubmittedAt    cjson.Uint64    `json:"submittedAt"`
}

// GetProof returns the stored proof with the given id.
func (s *Service) GetProof(_ *http.Request, args *GetProofArgs, reply *GetProofReply) error {
	proof, err := s.Coordinator.GetProof(uint64(args.ProofID))
	if err != nil {
		return err
	}
	merklePath := make([]ProofStepJSON, len(proof.MerklePath))
	for i, step := range proof.MerklePath {
		merklePath[i] = ProofStepJSON{Sibling: step.Sibling.String(), Left: step.Left}
	}
	signature, _ := formatting.EncodeWithChecksum(formatting.Hex, proof.Signature)
	reply.ProofID = cjson.Uint64(proof.ProofID)
	reply.SourceChain = cjson.Uint32(proof.SourceChain)
	reply.TargetChain = cjson.Uint32(proof.TargetChain)
	reply.TxHash = proof.TxHash.String()
	reply.MerkleRoot = proof.MerkleRoot.String()
	reply.MerklePath = merklePath
	reply.Signature = signature
	reply.BlockTimestamp = cjson.Uint64(proof.BlockTimestamp)
	reply.Submitter = proof.Submitter.String()
	reply.SubmittedAt = cjson.Uint64(proof.SubmittedAt)
	return nil
}

// GetChainConfigArgs ...
type GetChainConfigArgs struct {
	ChainID cjson.Uint32 `json:"chainID"`
}

// ChainConfigJSON is the API form of a chain policy.
type ChainConfigJSON struct {
	ChainID          cjson.Uint32 `json:"chainID"`
	Name             string       `json:"name"`
	BridgeAddress    string       `json:"bridgeAddress"`
	MinConfirmations cjson.Uint32 `json:"minConfirmations"`
	BlockTime        cjson.Uint64 `json:"blockTime"`
	TrustLevel       cjson.Uint32 `json:"trustLevel"`
	Active           bool         `json:"active"`
}

// GetChainConfigReply ...
type GetChainConfigReply struct {
	Chain ChainConfigJSON `json:"chain"`
}

// GetChainConfig returns the policy for a configured chain.
func (s *Service) GetChainConfig(_ *http.Request, args *GetChainConfigArgs, reply *GetChainConfigReply) error {
	config, err := s.Coordinator.GetChainConfig(uint32(args.ChainID))
	if err != nil {
		return err
	}
	reply.Chain = ChainConfigJSON{
		ChainID:          cjson.Uint32(config.ChainID),
		Name:             config.Name,
		BridgeAddress:    config.BridgeAddress.String(),
		MinConfirmations: cjson.Uint32(config.MinConfirmations),
		BlockTime:        cjson.Uint64(config.BlockTime),
		TrustLevel:       cjson.Uint32(config.TrustLevel),
		Active:           config.Active,
	}
	return nil
}

// SupportedChainsReply ...
type SupportedChainsReply struct {
	ChainIDs []cjson.Uint32 `json:"chainIDs"`
}

// SupportedChains returns the ids of all configured chains.
func (s *Service) SupportedChains(_ *http.Request, _ *struct{}, reply *SupportedChainsReply) error {
	chainIDs, err := s.Coordinator.SupportedChains()
	if err != nil {
		return err
	}
	reply.ChainIDs = make([]cjson.Uint32, len(chainIDs))
	for i, chainID := range chainIDs {
		reply.ChainIDs[i] = cjson.Uint32(chainID)
	}
	return nil
}

// ChainStatisticsReply ...
type ChainStatisticsReply struct {
	ChainID      cjson.Uint32 `json:"chainID"`
	MessageCount cjson.Uint64 `json:"messageCount"`
	SuccessCount cjson.Uint64 `json:"successCount"`
	AvgGasUsed   cjson.Uint64 `json:"avgGasUsed"`
}

// ChainStatistics returns per-chain message execution statistics.
func (s *Service) ChainStatistics(_ *http.Request, args *GetChainConfigArgs, reply *ChainStatisticsReply) error {
	stats, err := s.Coordinator.ChainStatistics(uint32(args.ChainID))
	if err != nil {
		return err
	}
	reply.ChainID = cjson.Uint32(stats.ChainID)
	reply.MessageCount = cjson.Uint64(stats.MessageCount)
	reply.SuccessCount = cjson.Uint64(stats.SuccessCount)
	reply.AvgGasUsed = cjson.Uint64(stats.AvgGasUsed)
	return nil
}

// StatusReply ...
type StatusReply struct {
	Authority    string       `json:"authority"`
	FeeRate      cjson.Uint32 `json:"feeRate"`
	SwapCount    cjson.Uint64 `json:"swapCount"`
	MessageCount cjson.Uint64 `json:"messageCount"`
	RelayerCount cjson.Uint64 `json:"relayerCount"`
	ProofCount   cjson.Uint64 `json:"proofCount"`
}

// Status returns the coordinator's policy and record counters.
func (s *Service) Status(_ *http.Request, _ *struct{}, reply *StatusReply) error {
	authority, err := s.Coordinator.Authority()
	if err != nil {
		return err
	}
	feeRate, err := s.Coordinator.FeeRate()
	if err != nil {
		return err
	}
	swapCount, err := s.Coordinator.SwapCount()
	if err != nil {
		return err
	}
	messageCount, err := s.Coordinator.MessageCount()
	if err != nil {
		return err
	}
	relayerCount, err := s.Coordinator.RelayerCount()
	if err != nil {
		return err
	}
	proofCount, err := s.Coordinator.ProofCount()
	if err != nil {
		return err
	}
	reply.Authority = authority.String()
	reply.FeeRate = cjson.Uint32(feeRate)
	reply.SwapCount = cjson.Uint64(swapCount)
	reply.MessageCount = cjson.Uint64(messageCount)
	reply.RelayerCount = cjson.Uint64(relayerCount)
	reply.ProofCount = cjson.Uint64(proofCount)
	return nil
}

func packUint64JSON(values []uint64) []cjson.Uint64 {
	packed := make([]cjson.Uint64, len(values))
	for i, v := range values {
		packed[i] = cjson.Uint64(v)
	}
	return packed
}
