// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package client

import (
	"context"

	"github.com/ava-labs/avalanchego/api"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/rpc"

	cjson "github.com/ava-labs/avalanchego/utils/json"

	"github.com/verinode/coordvm/coordvm"
)

// Client defines coordinator client operations.
type Client interface {
	// Initialize sets the authority and policy config
	Initialize(ctx context.Context, authority ids.ShortID, config []byte) (bool, error)

	// InitiateSwap opens a new swap and returns its id
	InitiateSwap(ctx context.Context, caller ids.ShortID, args coordvm.InitiateSwapArgs) (uint64, error)

	// FundSwap records the caller's deposit evidence for a swap
	FundSwap(ctx context.Context, caller ids.ShortID, swapID uint64, txHash ids.ID, blockNumber uint64, inclusionProof []byte) (string, error)

	// RedeemSwap reveals the secret and completes the swap
	RedeemSwap(ctx context.Context, caller ids.ShortID, swapID uint64, secret []byte) (bool, error)

	// RefundSwap returns a funded, timed-out swap to its initiator
	RefundSwap(ctx context.Context, caller ids.ShortID, swapID uint64) (bool, error)

	// CancelSwap cancels a non-terminal swap
	CancelSwap(ctx context.Context, caller ids.ShortID, swapID uint64) (bool, error)

	// ExpireSwaps runs the swap expiry sweep
	ExpireSwaps(ctx context.Context) ([]uint64, error)

	// GetSwap fetches the swap with the given id
	GetSwap(ctx context.Context, swapID uint64) (*coordvm.SwapJSON, error)

	// ActiveSwaps fetches the ids of all open swaps
	ActiveSwaps(ctx context.Context) ([]uint64, error)

	// SendMessage enqueues a cross-chain message
	SendMessage(ctx context.Context, caller ids.ShortID, args coordvm.SendMessageArgs) (uint64, error)

	// RelayMessage picks a pending message up for transport
	RelayMessage(ctx context.Context, caller ids.ShortID, messageID uint64, relayProof []byte) (bool, error)

	// DeliverMessage records target-chain delivery evidence
	DeliverMessage(ctx context.Context, caller ids.ShortID, messageID uint64, deliveryProof []byte) (bool, error)

	// ExecuteMessage records the payload's execution outcome
	ExecuteMessage(ctx context.Context, caller ids.ShortID, messageID uint64, result []byte, gasUsed uint64, success bool) (bool, error)

	// ExpireMessages runs the message expiry sweep
	ExpireMessages(ctx context.Context) ([]uint64, error)

	// GetMessage fetches the message with the given id
	GetMessage(ctx context.Context, messageID uint64) (*coordvm.MessageJSON, error)

	// PendingMessages fetches the ids of all pending messages
	PendingMessages(ctx context.Context) ([]uint64, error)

	// RegisterRelayer registers a relayer. Authority only
	RegisterRelayer(ctx context.Context, caller ids.ShortID, address ids.ShortID, supportedChains []uint32, feePercentage uint32) (uint64, error)

	// GetRelayer fetches the relayer with the given id
	GetRelayer(ctx context.Context, relayerID uint64) (*coordvm.RelayerJSON, error)

	// SubmitProof stores remote-chain evidence for verification
	SubmitProof(ctx context.Context, caller ids.ShortID, args coordvm.SubmitProofArgs) (uint64, error)

	// RecordVerification verifies a stored proof and returns the verdict
	RecordVerification(ctx context.Context, caller ids.ShortID, proofID uint64) (string, error)

	// IsFullyVerified reports composite cross-chain verification
	IsFullyVerified(ctx context.Context, proofID uint64) (bool, error)

	// AddChainConfig adds or replaces a chain policy. Authority only
	AddChainConfig(ctx context.Context, caller ids.ShortID, config coordvm.ChainConfig) (bool, error)

	// AddTrustedVerifier grants verification rights. Authority only
	AddTrustedVerifier(ctx context.Context, caller ids.ShortID, verifier ids.ShortID) (bool, error)

	// Status fetches the coordinator's policy and record counters
	Status(ctx context.Context) (*coordvm.StatusReply, error)
}

// New creates a new client object.
func New(uri string) Client {
	req := rpc.NewEndpointRequester(uri, "", "coordvm")
	return &client{req: req}
}

type client struct {
	req rpc.EndpointRequester
}

func (cli *client) Initialize(ctx context.Context, authority ids.ShortID, config []byte) (bool, error) {
	resp := new(api.SuccessResponse)
	err := cli.req.SendRequest(ctx,
		"initialize",
		&coordvm.InitializeArgs{
			Authority: authority.String(),
			Config:    string(config),
		},
		resp,
	)
	return resp.Success, err
}

func (cli *client) InitiateSwap(ctx context.Context, caller ids.ShortID, args coordvm.InitiateSwapArgs) (uint64, error) {
	sourceAddress, err := formatting.EncodeWithChecksum(formatting.Hex, args.SourceAsset.Address)
	if err != nil {
		return 0, err
	}
	targetAddress, err := formatting.EncodeWithChecksum(formatting.Hex, args.TargetAsset.Address)
	if err != nil {
		return 0, err
	}

	resp := new(coordvm.InitiateSwapReply)
	err = cli.req.SendRequest(ctx,
		"initiateSwap",
		&coordvm.InitiateSwapServiceArgs{
			Caller:      caller.String(),
			Participant: args.Participant.String(),
			SourceChain: cjson.Uint32(args.SourceChain),
			TargetChain: cjson.Uint32(args.TargetChain),
			SourceAsset: coordvm.AssetJSON{
				Address:  sourceAddress,
				Amount:   cjson.Uint64(args.SourceAsset.Amount),
				Decimals: cjson.Uint8(args.SourceAsset.Decimals),
			},
			TargetAsset: coordvm.AssetJSON{
				Address:  targetAddress,
				Amount:   cjson.Uint64(args.TargetAsset.Amount),
				Decimals: cjson.Uint8(args.TargetAsset.Decimals),
			},
			SecretHash: args.SecretHash.String(),
			Timeout:    cjson.Uint64(args.Timeout),
		},
		resp,
	)
	return uint64(resp.SwapID), err
}

func (cli *client) FundSwap(ctx context.Context, caller ids.ShortID, swapID uint64, txHash ids.ID, blockNumber uint64, inclusionProof []byte) (string, error) {
	proof, err := formatting.EncodeWithChecksum(formatting.Hex, inclusionProof)
	if err != nil {
		return "", err
	}

	resp := new(coordvm.FundSwapReply)
	err = cli.req.SendRequest(ctx,
		"fundSwap",
		&coordvm.FundSwapArgs{
			Caller:         caller.String(),
			SwapID:         cjson.Uint64(swapID),
			TxHash:         txHash.String(),
			BlockNumber:    cjson.Uint64(blockNumber),
			InclusionProof: proof,
		},
		resp,
	)
	return resp.Status, err
}

func (cli *client) RedeemSwap(ctx context.Context, caller ids.ShortID, swapID uint64, secret []byte) (bool, error) {
	encoded, err := formatting.EncodeWithChecksum(formatting.Hex, secret)
	if err != nil {
		return false, err
	}

	resp := new(api.SuccessResponse)
	err = cli.req.SendRequest(ctx,
		"redeemSwap",
		&coordvm.RedeemSwapArgs{
			Caller: caller.String(),
			SwapID: cjson.Uint64(swapID),
			Secret: encoded,
		},
		resp,
	)
	return resp.Success, err
}

func (cli *client) RefundSwap(ctx context.Context, caller ids.ShortID, swapID uint64) (bool, error) {
	resp := new(api.SuccessResponse)
	err := cli.req.SendRequest(ctx,
		"refundSwap",
		&coordvm.SwapIDArgs{Caller: caller.String(), SwapID: cjson.Uint64(swapID)},
		resp,
	)
	return resp.Success, err
}

func (cli *client) CancelSwap(ctx context.Context, caller ids.ShortID, swapID uint64) (bool, error) {
	resp := new(api.SuccessResponse)
	err := cli.req.SendRequest(ctx,
		"cancelSwap",
		&coordvm.SwapIDArgs{Caller: caller.String(), SwapID: cjson.Uint64(swapID)},
		resp,
	)
	return resp.Success, err
}

func (cli *client) ExpireSwaps(ctx context.Context) ([]uint64, error) {
	resp := new(coordvm.SweepReply)
	err := cli.req.SendRequest(ctx, "expireSwaps", &struct{}{}, resp)
	return unpackUint64JSON(resp.Expired), err
}

func (cli *client) GetSwap(ctx context.Context, swapID uint64) (*coordvm.SwapJSON, error) {
	resp := new(coordvm.GetSwapReply)
	err := cli.req.SendRequest(ctx,
		"getSwap",
		&coordvm.GetSwapArgs{SwapID: cjson.Uint64(swapID)},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Swap, nil
}

func (cli *client) ActiveSwaps(ctx context.Context) ([]uint64, error) {
	resp := new(coordvm.ActiveSwapsReply)
	err := cli.req.SendRequest(ctx, "activeSwaps", &struct{}{}, resp)
	return unpackUint64JSON(resp.SwapIDs), err
}

func (cli *client) SendMessage(ctx context.Context, caller ids.ShortID, args coordvm.SendMessageArgs) (uint64, error) {
	payload, err := formatting.EncodeWithChecksum(formatting.Hex, args.Payload)
	if err != nil {
		return 0, err
	}
	signature, err := formatting.EncodeWithChecksum(formatting.Hex, args.Signature)
	if err != nil {
		return 0, err
	}

	resp := new(coordvm.SendMessageReply)
	err = cli.req.SendRequest(ctx,
		"sendMessage",
		&coordvm.SendMessageServiceArgs{
			Caller:      caller.String(),
			TargetChain: cjson.Uint32(args.TargetChain),
			Recipient:   args.Recipient.String(),
			Kind:        cjson.Uint8(args.Kind),
			Payload:     payload,
			Signature:   signature,
		},
		resp,
	)
	return uint64(resp.MessageID), err
}

func (cli *client) RelayMessage(ctx context.Context, caller ids.ShortID, messageID uint64, relayProof []byte) (bool, error) {
	proof, err := formatting.EncodeWithChecksum(formatting.Hex, relayProof)
	if err != nil {
		return false, err
	}

	resp := new(api.SuccessResponse)
	err = cli.req.SendRequest(ctx,
		"relayMessage",
		&coordvm.RelayMessageArgs{
			Caller:     caller.String(),
			MessageID:  cjson.Uint64(messageID),
			RelayProof: proof,
		},
		resp,
	)
	return resp.Success, err
}

func (cli *client) DeliverMessage(ctx context.Context, caller ids.ShortID, messageID uint64, deliveryProof []byte) (bool, error) {
	proof, err := formatting.EncodeWithChecksum(formatting.Hex, deliveryProof)
	if err != nil {
		return false, err
	}

	resp := new(api.SuccessResponse)
	err = cli.req.SendRequest(ctx,
		"deliverMessage",
		&coordvm.RelayMessageArgs{
			Caller:     caller.String(),
			MessageID:  cjson.Uint64(messageID),
			RelayProof: proof,
		},
		resp,
	)
	return resp.Success, err
}

func (cli *client) ExecuteMessage(ctx context.Context, caller ids.ShortID, messageID uint64, result []byte, gasUsed uint64, success bool) (bool, error) {
	encoded, err := formatting.EncodeWithChecksum(formatting.Hex, result)
	if err != nil {
		return false, err
	}

	resp := new(api.SuccessResponse)
	err = cli.req.SendRequest(ctx,
		"executeMessage",
		&coordvm.ExecuteMessageArgs{
			Caller:    caller.String(),
			MessageID: cjson.Uint64(messageID),
			Result:    encoded,
			GasUsed:   cjson.Uint64(gasUsed),
			Success:   success,
		},
		resp,
	)
	return resp.Success, err
}

func (cli *client) ExpireMessages(ctx context.Context) ([]uint64, error) {
	resp := new(coordvm.SweepReply)
	err := cli.req.SendRequest(ctx, "expireMessages", &struct{}{}, resp)
	return unpackUint64JSON(resp.Expired), err
}

func (cli *client) GetMessage(ctx context.Context, messageID uint64) (*coordvm.MessageJSON, error) {
	resp := new(coordvm.GetMessageReply)
	err := cli.req.SendRequest(ctx,
		"getMessage",
		&coordvm.GetMessageArgs{MessageID: cjson.Uint64(messageID)},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Message, nil
}

func (cli *client) PendingMessages(ctx context.Context) ([]uint64, error) {
	resp := new(coordvm.PendingMessagesReply)
	err := cli.req.SendRequest(ctx, "pendingMessages", &struct{}{}, resp)
	return unpackUint64JSON(resp.MessageIDs), err
}

func (cli *client) RegisterRelayer(ctx context.Context, caller ids.ShortID, address ids.ShortID, supportedChains []uint32, feePercentage uint32) (uint64, error) {
	chains := make([]cjson.Uint32, len(supportedChains))
	for i, chainID := range supportedChains {
		chains[i] = cjson.Uint32(chainID)
	}

	resp := new(coordvm.RegisterRelayerReply)
	err := cli.req.SendRequest(ctx,
		"registerRelayer",
		&coordvm.RegisterRelayerArgs{
			Caller:          caller.String(),
			Address:         address.String(),
			SupportedChains: chains,
			FeePercentage:   cjson.Uint32(feePercentage),
		},
		resp,
	)
	return uint64(resp.RelayerID), err
}

func (cli *client) GetRelayer(ctx context.Context, relayerID uint64) (*coordvm.RelayerJSON, error) {
	resp := new(coordvm.GetRelayerReply)
	err := cli.req.SendRequest(ctx,
		"getRelayer",
		&coordvm.GetRelayerArgs{RelayerID: cjson.Uint64(relayerID)},
		resp,
	)
	if err != nil {
		return nil, err
	}
	return &resp.Relayer, nil
}

func (cli *client) SubmitProof(ctx context.Context, caller ids.ShortID, args coordvm.SubmitProofArgs) (uint64, error) {
	signature, err := formatting.EncodeWithChecksum(formatting.Hex, args.Signature)
	if err != nil {
		return 0, err
	}
	merklePath := make([]coordvm.ProofStepJSON, len(args.MerklePath))
	for i, step := range args.MerklePath {
		merklePath[i] = coordvm.ProofStepJSON{Sibling: step.Sibling.String(), Left: step.Left}
	}

	resp := new(coordvm.SubmitProofReply)
	err = cli.req.SendRequest(ctx,
		"submitProof",
		&coordvm.SubmitProofServiceArgs{
			Caller:         caller.String(),
			SourceChain:    cjson.Uint32(args.SourceChain),
			TargetChain:    cjson.Uint32(args.TargetChain),
			TxHash:         args.TxHash.String(),
			MerkleRoot:     args.MerkleRoot.String(),
			MerklePath:     merklePath,
			Signature:      signature,
			BlockTimestamp: cjson.Uint64(args.BlockTimestamp),
		},
		resp,
	)
	return uint64(resp.ProofID), err
}

func (cli *client) RecordVerification(ctx context.Context, caller ids.ShortID, proofID uint64) (string, error) {
	resp := new(coordvm.RecordVerificationReply)
	err := cli.req.SendRequest(ctx,
		"recordVerification",
		&coordvm.RecordVerificationArgs{
			Caller:  caller.String(),
			ProofID: cjson.Uint64(proofID),
		},
		resp,
	)
	return resp.Verdict, err
}

func (cli *client) IsFullyVerified(ctx context.Context, proofID uint64) (bool, error) {
	resp := new(coordvm.IsFullyVerifiedReply)
	err := cli.req.SendRequest(ctx,
		"isFullyVerified",
		&coordvm.GetVerificationArgs{ProofID: cjson.Uint64(proofID)},
		resp,
	)
	return resp.FullyVerified, err
}

func (cli *client) AddChainConfig(ctx context.Context, caller ids.ShortID, config coordvm.ChainConfig) (bool, error) {
	resp := new(api.SuccessResponse)
	err := cli.req.SendRequest(ctx,
		"addChainConfig",
		&coordvm.AddChainConfigArgs{
			Caller:           caller.String(),
			ChainID:          cjson.Uint32(config.ChainID),
			Name:             config.Name,
			BridgeAddress:    config.BridgeAddress.String(),
			MinConfirmations: cjson.Uint32(config.MinConfirmations),
			BlockTime:        cjson.Uint64(config.BlockTime),
			TrustLevel:       cjson.Uint32(config.TrustLevel),
			Active:           config.Active,
		},
		resp,
	)
	return resp.Success, err
}

func (cli *client) AddTrustedVerifier(ctx context.Context, caller ids.ShortID, verifier ids.ShortID) (bool, error) {
	resp := new(api.SuccessResponse)
	err := cli.req.SendRequest(ctx,
		"addTrustedVerifier",
		&coordvm.VerifierArgs{
			Caller:   caller.String(),
			Verifier: verifier.String(),
		},
		resp,
	)
	return resp.Success, err
}

func (cli *client) Status(ctx context.Context) (*coordvm.StatusReply, error) {
	resp := new(coordvm.StatusReply)
	err := cli.req.SendRequest(ctx, "status", &struct{}{}, resp)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func unpackUint64JSON(values []cjson.Uint64) []uint64 {
	unpacked := make([]uint64, len(values))
	for i, v := range values {
		unpacked[i] = uint64(v)
	}
	return unpacked
}
