// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import "encoding/json"

// Default policy values, applied where the config blob leaves a field
// unset.
const (
	defaultMinTimelock    = 1 * 60 * 60      // 1 hour
	defaultMaxTimelock    = 7 * 24 * 60 * 60 // 7 days
	defaultMessageTimeout = 24 * 60 * 60     // 1 day
	defaultTrustThreshold = 50
	defaultFeeRate        = 30 // basis points
	defaultLocalChain     = 1
)

// Config is the coordinator's policy configuration, handed over as a JSON
// blob at initialization the same way a chain hands its VM a config.
type Config struct {
	// MinTimelock and MaxTimelock bound a swap's timeout, in seconds from
	// initiation.
	MinTimelock uint64 `json:"minTimelock"`
	MaxTimelock uint64 `json:"maxTimelock"`

	// MessageTimeout is how long a message may sit pending before an
	// expiry sweep claims it, in seconds.
	MessageTimeout uint64 `json:"messageTimeout"`

	// TrustThreshold is the minimum per-chain trust level both ends of a
	// cross-chain proof must meet.
	TrustThreshold uint32 `json:"trustThreshold"`

	// FeeRate is the initial relay fee rate in basis points. The authority
	// may change it later.
	FeeRate uint32 `json:"feeRate"`

	// LocalChain is the chain id the coordinator stamps as the source of
	// outbound messages.
	LocalChain uint32 `json:"localChain"`

	// Chains seeds the chain configs at initialization.
	Chains []ChainConfig `json:"chains"`
}

// parseConfig decodes [configBytes] over the defaults. An empty blob
// yields the default config.
func parseConfig(configBytes []byte) (Config, error) {
	cfg := Config{
		MinTimelock:    defaultMinTimelock,
		MaxTimelock:    defaultMaxTimelock,
		MessageTimeout: defaultMessageTimeout,
		TrustThreshold: defaultTrustThreshold,
		FeeRate:        defaultFeeRate,
		LocalChain:     defaultLocalChain,
	}
	if len(configBytes) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.MinTimelock > cfg.MaxTimelock {
		return Config{}, errInvalidTimelock
	}
	return cfg, nil
}
