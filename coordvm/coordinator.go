// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"sync"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/timer/mockable"
)

const (
	Name    = "coordvm"
	Version = "1.0.3"
)

// Coordinator is the cross-chain transfer coordination engine: a
// deterministic state machine over a keyed store. Callers are assumed to
// be authenticated by the surrounding host; the coordinator only checks
// authorization against its stored records. Operations run one at a time
// under a single lock, each committing atomically or leaving state
// untouched.
type Coordinator struct {
	lock  sync.Mutex
	state State
	clock mockable.Clock
	cfg   Config
}

// New returns a coordinator over [db]. The engine is unusable until
// Initialize has run (either in this process or a previous one against
// the same database).
func New(db database.Database) (*Coordinator, error) {
	c := &Coordinator{
		state: NewState(db),
		cfg:   Config{},
	}

	initialized, err := c.state.IsInitialized()
	if err != nil {
		return nil, err
	}
	if initialized {
		// config was validated when first written; reload the persisted
		// blob so a process restart keeps the operator's policy
		configBytes, err := c.state.GetConfigBytes()
		if err != nil {
			return nil, err
		}
		cfg, err := parseConfig(configBytes)
		if err != nil {
			return nil, err
		}
		c.cfg = cfg
	}
	return c, nil
}

// Initialize sets the administering authority and the policy config,
// and seeds the configured chains. It may run exactly once over a given
// database.
func (c *Coordinator) Initialize(authority ids.ShortID, configBytes []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	initialized, err := c.state.IsInitialized()
	if err != nil {
		return err
	}
	if initialized {
		return errAlreadyInitialized
	}

	cfg, err := parseConfig(configBytes)
	if err != nil {
		return err
	}

	if err := c.initialize(authority, cfg, configBytes); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	c.cfg = cfg

	log.Info("coordinator initialized", "authority", authority, "chains", len(cfg.Chains))
	return nil
}

func (c *Coordinator) initialize(authority ids.ShortID, cfg Config, configBytes []byte) error {
	if err := c.state.SetAuthority(authority); err != nil {
		return err
	}
	if err := c.state.SetFeeRate(cfg.FeeRate); err != nil {
		return err
	}
	if err := c.state.SetConfigBytes(configBytes); err != nil {
		return err
	}
	for i := range cfg.Chains {
		chain := cfg.Chains[i]
		if err := c.state.PutChainConfig(&chain); err != nil {
			return err
		}
	}
	return c.state.SetInitialized()
}

// SetConfig replaces the policy config and persists the blob, so the new
// policy survives a restart.
func (c *Coordinator) SetConfig(configBytes []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	cfg, err := parseConfig(configBytes)
	if err != nil {
		return err
	}
	if err := c.state.SetConfigBytes(configBytes); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	c.cfg = cfg
	return nil
}

// Shutdown releases the underlying database.
func (c *Coordinator) Shutdown() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.Close()
}

// Authority returns the administering authority.
func (c *Coordinator) Authority() (ids.ShortID, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetAuthority()
}

// FeeRate returns the current relay fee rate in basis points.
func (c *Coordinator) FeeRate() (uint32, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetFeeRate()
}

// SetFeeRate changes the relay fee rate. Authority only.
func (c *Coordinator) SetFeeRate(caller ids.ShortID, rate uint32) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.ensureAuthority(caller); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.SetFeeRate(rate); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}

	log.Info("fee rate changed", "rate", rate)
	return nil
}

// AddChainConfig adds or replaces a chain's trust policy. Authority only.
func (c *Coordinator) AddChainConfig(caller ids.ShortID, config ChainConfig) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.ensureAuthority(caller); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.PutChainConfig(&config); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}

	log.Info("chain config added", "chainID", config.ChainID, "name", config.Name, "trustLevel", config.TrustLevel)
	return nil
}

// SetChainActive flips a chain's active flag. Authority only.
func (c *Coordinator) SetChainActive(caller ids.ShortID, chainID uint32, active bool) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.setChainActive(caller, chainID, active); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}
	return nil
}

func (c *Coordinator) setChainActive(caller ids.ShortID, chainID uint32, active bool) error {
	if err := c.ensureAuthority(caller); err != nil {
		return err
	}
	config, err := c.state.GetChainConfig(chainID)
	if err != nil {
		return err
	}
	config.Active = active
	return c.state.PutChainConfig(config)
}

// GetChainConfig returns the stored policy for [chainID].
func (c *Coordinator) GetChainConfig(chainID uint32) (*ChainConfig, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.GetChainConfig(chainID)
}

// SupportedChains returns the configured chain ids, ascending.
func (c *Coordinator) SupportedChains() ([]uint32, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.ChainIDs()
}

// AddTrustedVerifier grants [verifier] the right to record verification
// verdicts. Authority only.
func (c *Coordinator) AddTrustedVerifier(caller ids.ShortID, verifier ids.ShortID) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.ensureAuthority(caller); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.AddTrustedVerifier(verifier); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}

	log.Info("trusted verifier added", "verifier", verifier)
	return nil
}

// RemoveTrustedVerifier revokes a verifier. Authority only.
func (c *Coordinator) RemoveTrustedVerifier(caller ids.ShortID, verifier ids.ShortID) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if err := c.ensureAuthority(caller); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.RemoveTrustedVerifier(verifier); err != nil {
		c.state.Abort()
		return err
	}
	if err := c.state.Commit(); err != nil {
		c.state.Abort()
		return err
	}

	log.Info("trusted verifier removed", "verifier", verifier)
	return nil
}

// IsTrustedVerifier reports whether [verifier] may record verdicts.
func (c *Coordinator) IsTrustedVerifier(verifier ids.ShortID) (bool, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.IsTrustedVerifier(verifier)
}

func (c *Coordinator) ensureInitialized() error {
	initialized, err := c.state.IsInitialized()
	if err != nil {
		return err
	}
	if !initialized {
		return errNotInitialized
	}
	return nil
}

func (c *Coordinator) ensureAuthority(caller ids.ShortID) error {
	authority, err := c.state.GetAuthority()
	if err != nil {
		return err
	}
	if caller != authority {
		return errUnauthorized
	}
	return nil
}
