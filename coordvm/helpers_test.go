// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/stretchr/testify/assert"
)

const (
	testBaseTime = uint64(1700000000)

	localChainID  = uint32(1)
	remoteChainID = uint32(2)
)

var (
	testAuthority   = ids.ShortID{0x0a}
	testInitiator   = ids.ShortID{0x01}
	testParticipant = ids.ShortID{0x02}
	testRelayerAddr = ids.ShortID{0x03}
	testVerifier    = ids.ShortID{0x04}
	testStranger    = ids.ShortID{0x0f}
)

func testConfig() Config {
	return Config{
		MinTimelock:    60 * 60,
		MaxTimelock:    7 * 24 * 60 * 60,
		MessageTimeout: 24 * 60 * 60,
		TrustThreshold: 50,
		FeeRate:        30,
		LocalChain:     localChainID,
		Chains: []ChainConfig{
			{
				ChainID:          localChainID,
				Name:             "home",
				MinConfirmations: 6,
				BlockTime:        15,
				TrustLevel:       90,
				Active:           true,
			},
			{
				ChainID:          remoteChainID,
				Name:             "remote",
				MinConfirmations: 12,
				BlockTime:        10,
				TrustLevel:       80,
				Active:           true,
			},
		},
	}
}

// newTestCoordinator returns an initialized coordinator over a fresh
// in-memory database, with the clock pinned to testBaseTime.
func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()

	c, err := New(memdb.New())
	assert.NoError(t, err)
	c.clock.Set(time.Unix(int64(testBaseTime), 0))

	configBytes, err := json.Marshal(testConfig())
	assert.NoError(t, err)
	assert.NoError(t, c.Initialize(testAuthority, configBytes))
	return c
}

// advanceClock moves the coordinator's clock forward by [secs] seconds.
func advanceClock(c *Coordinator, secs uint64) {
	c.clock.Set(c.clock.Time().Add(time.Duration(secs) * time.Second))
}

// newTestSwap initiates a swap an hour inside the timelock window and
// returns its id.
func newTestSwap(t *testing.T, c *Coordinator, secretHash ids.ID) uint64 {
	t.Helper()

	swapID, err := c.InitiateSwap(testInitiator, InitiateSwapArgs{
		Participant: testParticipant,
		SourceChain: localChainID,
		TargetChain: remoteChainID,
		SourceAsset: Asset{Address: []byte{0xaa}, Amount: 1000, Decimals: 6},
		TargetAsset: Asset{Address: []byte{0xbb}, Amount: 500, Decimals: 8},
		SecretHash:  secretHash,
		Timeout:     c.clock.Unix() + 2*60*60,
	})
	assert.NoError(t, err)
	return swapID
}

// fundTestSwap records both parties' deposits.
func fundTestSwap(t *testing.T, c *Coordinator, swapID uint64) {
	t.Helper()

	status, err := c.FundSwap(testInitiator, swapID, Deposit{
		TxHash:      ids.ID{0x11},
		BlockNumber: 100,
	})
	assert.NoError(t, err)
	assert.Equal(t, SwapInitiated, status)

	status, err = c.FundSwap(testParticipant, swapID, Deposit{
		TxHash:      ids.ID{0x22},
		BlockNumber: 200,
	})
	assert.NoError(t, err)
	assert.Equal(t, SwapFunded, status)
}

// newTestRelayer registers an active relayer for the remote chain and
// returns its id.
func newTestRelayer(t *testing.T, c *Coordinator) uint64 {
	t.Helper()

	relayerID, err := c.RegisterRelayer(testAuthority, testRelayerAddr, []uint32{remoteChainID}, 100)
	assert.NoError(t, err)
	return relayerID
}
