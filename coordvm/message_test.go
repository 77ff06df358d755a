// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
)

func testMessageArgs() SendMessageArgs {
	return SendMessageArgs{
		TargetChain: remoteChainID,
		Recipient:   testParticipant,
		Kind:        MessageGeneric,
		Payload:     []byte("payload"),
		Signature:   []byte("sig"),
	}
}

func TestMessageLifecycle(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)
	relayerID := newTestRelayer(t, c)

	messageID, err := c.SendMessage(testInitiator, testMessageArgs())
	assert.NoError(err)
	assert.Equal(uint64(1), messageID)

	msg, err := c.GetMessage(messageID)
	assert.NoError(err)
	assert.Equal(MessagePending, msg.Status)
	assert.Equal(localChainID, msg.SourceChain)
	assert.Equal(uint64(0), msg.Nonce)

	pending, err := c.PendingMessages()
	assert.NoError(err)
	assert.Equal([]uint64{messageID}, pending)

	assert.NoError(c.RelayMessage(testRelayerAddr, messageID, []byte("relay proof")))
	msg, err = c.GetMessage(messageID)
	assert.NoError(err)
	assert.Equal(MessageInTransit, msg.Status)
	assert.Equal(relayerID, msg.RelayedBy)

	pending, err = c.PendingMessages()
	assert.NoError(err)
	assert.Empty(pending)

	assert.NoError(c.DeliverMessage(testRelayerAddr, messageID, []byte("delivery proof")))
	msg, err = c.GetMessage(messageID)
	assert.NoError(err)
	assert.Equal(MessageDelivered, msg.Status)

	assert.NoError(c.ExecuteMessage(testRelayerAddr, messageID, []byte("ok"), 21000, true))
	msg, err = c.GetMessage(messageID)
	assert.NoError(err)
	assert.Equal(MessageExecuted, msg.Status)
	assert.Equal(uint64(21000), msg.GasUsed)
	assert.Equal([]byte("ok"), msg.Result)
	assert.True(msg.Status.Terminal())

	relayer, err := c.GetRelayer(relayerID)
	assert.NoError(err)
	assert.Equal(uint64(1), relayer.TotalMessages)
	assert.Equal(uint64(1), relayer.SuccessCount)
	assert.Equal(uint64(21000), relayer.AvgGasUsed)

	stats, err := c.ChainStatistics(remoteChainID)
	assert.NoError(err)
	assert.Equal(uint64(1), stats.MessageCount)
	assert.Equal(uint64(1), stats.SuccessCount)
	assert.Equal(uint64(21000), stats.AvgGasUsed)
}

func TestSendMessageValidation(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	empty := testMessageArgs()
	empty.Payload = nil
	_, err := c.SendMessage(testInitiator, empty)
	assert.ErrorIs(err, errEmptyPayload)

	unknown := testMessageArgs()
	unknown.TargetChain = 99
	_, err = c.SendMessage(testInitiator, unknown)
	assert.ErrorIs(err, errChainNotFound)

	assert.NoError(c.SetChainActive(testAuthority, remoteChainID, false))
	_, err = c.SendMessage(testInitiator, testMessageArgs())
	assert.ErrorIs(err, errUnsupportedChain)
}

func TestRelayMessageValidation(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)
	relayerID := newTestRelayer(t, c)

	messageID, err := c.SendMessage(testInitiator, testMessageArgs())
	assert.NoError(err)

	// not a registered relayer
	assert.ErrorIs(c.RelayMessage(testStranger, messageID, nil), errRelayerNotFound)

	assert.NoError(c.SetRelayerActive(testAuthority, relayerID, false))
	assert.ErrorIs(c.RelayMessage(testRelayerAddr, messageID, nil), errRelayerInactive)
	assert.NoError(c.SetRelayerActive(testAuthority, relayerID, true))

	// a relayer for the wrong chain
	otherAddr := ids.ShortID{0x05}
	_, err = c.RegisterRelayer(testAuthority, otherAddr, []uint32{localChainID}, 50)
	assert.NoError(err)
	assert.ErrorIs(c.RelayMessage(otherAddr, messageID, nil), errChainNotRelayable)

	assert.NoError(c.RelayMessage(testRelayerAddr, messageID, nil))
	assert.ErrorIs(c.RelayMessage(testRelayerAddr, messageID, nil), errInvalidState)
}

func TestExecuteMessageRules(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)
	newTestRelayer(t, c)

	messageID, err := c.SendMessage(testInitiator, testMessageArgs())
	assert.NoError(err)

	// still pending
	assert.ErrorIs(c.ExecuteMessage(testRelayerAddr, messageID, nil, 0, true), errInvalidState)

	assert.NoError(c.RelayMessage(testRelayerAddr, messageID, nil))

	// only the relaying relayer may report the outcome
	otherAddr := ids.ShortID{0x05}
	_, err = c.RegisterRelayer(testAuthority, otherAddr, []uint32{remoteChainID}, 50)
	assert.NoError(err)
	assert.ErrorIs(c.ExecuteMessage(otherAddr, messageID, nil, 0, true), errUnauthorized)

	// a failed execution still closes the message and counts against
	// the relayer's success rate
	assert.NoError(c.ExecuteMessage(testRelayerAddr, messageID, []byte("revert"), 900, false))
	msg, err := c.GetMessage(messageID)
	assert.NoError(err)
	assert.Equal(MessageFailed, msg.Status)

	relayer, err := c.GetRelayer(uint64(1))
	assert.NoError(err)
	assert.Equal(uint64(1), relayer.TotalMessages)
	assert.Equal(uint64(0), relayer.SuccessCount)
}

func TestRollAverage(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(uint64(100), rollAverage(0, 0, 100))
	assert.Equal(uint64(150), rollAverage(100, 1, 200))
	assert.Equal(uint64(200), rollAverage(150, 2, 300))
	assert.Equal(uint64(0), rollAverage(0, 5, 0))

	// oldAvg*n would overflow here; the mean must stay in range
	big := uint64(1) << 63
	assert.Equal(big, rollAverage(big, 2, big))
	assert.Equal(big-(big/4), rollAverage(big, 3, 0))
	assert.Equal(uint64(1<<40)-1023, rollAverage(1<<40, 1<<30, 0))
}

func TestRelayerAverageAcrossMessages(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)
	relayerID := newTestRelayer(t, c)

	gas := []uint64{100, 200, 300}
	for i, g := range gas {
		messageID, err := c.SendMessage(testInitiator, testMessageArgs())
		assert.NoError(err)
		assert.Equal(uint64(i+1), messageID)
		assert.NoError(c.RelayMessage(testRelayerAddr, messageID, nil))
		assert.NoError(c.ExecuteMessage(testRelayerAddr, messageID, nil, g, true))
	}

	relayer, err := c.GetRelayer(relayerID)
	assert.NoError(err)
	assert.Equal(uint64(3), relayer.TotalMessages)
	assert.Equal(uint64(200), relayer.AvgGasUsed)
}

func TestBatchSendMessagesAtomic(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	good := testMessageArgs()
	bad := testMessageArgs()
	bad.Payload = nil

	_, err := c.BatchSendMessages(testInitiator, []SendMessageArgs{good, bad})
	assert.ErrorIs(err, errEmptyPayload)

	// nothing from the failed batch survives
	count, err := c.MessageCount()
	assert.NoError(err)
	assert.Equal(uint64(0), count)
	pending, err := c.PendingMessages()
	assert.NoError(err)
	assert.Empty(pending)

	messageIDs, err := c.BatchSendMessages(testInitiator, []SendMessageArgs{good, good})
	assert.NoError(err)
	assert.Equal([]uint64{1, 2}, messageIDs)
}

func TestExpireMessages(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)
	newTestRelayer(t, c)

	relayed, err := c.SendMessage(testInitiator, testMessageArgs())
	assert.NoError(err)
	stuck, err := c.SendMessage(testInitiator, testMessageArgs())
	assert.NoError(err)
	assert.NoError(c.RelayMessage(testRelayerAddr, relayed, nil))

	expired, err := c.ExpireMessages()
	assert.NoError(err)
	assert.Empty(expired)

	advanceClock(c, c.cfg.MessageTimeout+1)
	expired, err = c.ExpireMessages()
	assert.NoError(err)
	assert.Equal([]uint64{stuck}, expired)

	msg, err := c.GetMessage(stuck)
	assert.NoError(err)
	assert.Equal(MessageExpired, msg.Status)

	// a message already in transit is not the sweeper's to expire
	msg, err = c.GetMessage(relayed)
	assert.NoError(err)
	assert.Equal(MessageInTransit, msg.Status)

	expired, err = c.ExpireMessages()
	assert.NoError(err)
	assert.Empty(expired)
}

func TestCancelMessage(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	messageID, err := c.SendMessage(testInitiator, testMessageArgs())
	assert.NoError(err)

	assert.ErrorIs(c.CancelMessage(testInitiator, messageID), errUnauthorized)
	assert.NoError(c.CancelMessage(testAuthority, messageID))

	msg, err := c.GetMessage(messageID)
	assert.NoError(err)
	assert.Equal(MessageCancelled, msg.Status)

	assert.ErrorIs(c.CancelMessage(testAuthority, messageID), errInvalidState)

	pending, err := c.PendingMessages()
	assert.NoError(err)
	assert.Empty(pending)
}

func TestRegisterRelayerRules(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	_, err := c.RegisterRelayer(testStranger, testRelayerAddr, []uint32{remoteChainID}, 100)
	assert.ErrorIs(err, errUnauthorized)

	_, err = c.RegisterRelayer(testAuthority, testRelayerAddr, nil, 100)
	assert.ErrorIs(err, errNoChains)

	relayerID, err := c.RegisterRelayer(testAuthority, testRelayerAddr, []uint32{remoteChainID}, 100)
	assert.NoError(err)
	assert.Equal(uint64(1), relayerID)

	relayer, err := c.GetRelayer(relayerID)
	assert.NoError(err)
	assert.Equal(testRelayerAddr, relayer.Address)
	assert.True(relayer.Active)
	assert.True(relayer.Supports(remoteChainID))
	assert.False(relayer.Supports(localChainID))

	count, err := c.RelayerCount()
	assert.NoError(err)
	assert.Equal(uint64(1), count)
}

func TestMessagesForRecipient(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	for i := 0; i < 3; i++ {
		_, err := c.SendMessage(testInitiator, testMessageArgs())
		assert.NoError(err)
	}
	other := testMessageArgs()
	other.Recipient = testStranger
	_, err := c.SendMessage(testInitiator, other)
	assert.NoError(err)

	msgs, err := c.MessagesForRecipient(testParticipant, 0)
	assert.NoError(err)
	assert.Len(msgs, 3)

	msgs, err = c.MessagesForRecipient(testParticipant, 2)
	assert.NoError(err)
	assert.Len(msgs, 2)
	assert.Equal(uint64(1), msgs[0].MessageID)

	msgs, err = c.MessagesForRecipient(testStranger, 0)
	assert.NoError(err)
	assert.Len(msgs, 1)
}

func TestMessagesByType(t *testing.T) {
	assert := assert.New(t)
	c := newTestCoordinator(t)

	for i := 0; i < 2; i++ {
		_, err := c.SendMessage(testInitiator, testMessageArgs())
		assert.NoError(err)
	}
	transfer := testMessageArgs()
	transfer.Kind = MessageAssetTransfer
	_, err := c.SendMessage(testInitiator, transfer)
	assert.NoError(err)

	msgs, err := c.MessagesByType(MessageGeneric, 0)
	assert.NoError(err)
	assert.Len(msgs, 2)
	assert.Equal(uint64(1), msgs[0].MessageID)

	msgs, err = c.MessagesByType(MessageAssetTransfer, 0)
	assert.NoError(err)
	assert.Len(msgs, 1)
	assert.Equal(uint64(3), msgs[0].MessageID)

	msgs, err = c.MessagesByType(MessageAtomicSwap, 0)
	assert.NoError(err)
	assert.Len(msgs, 0)

	msgs, err = c.MessagesByType(MessageGeneric, 1)
	assert.NoError(err)
	assert.Len(msgs, 1)
}
