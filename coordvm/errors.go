// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import "errors"

// Every operation validates before it mutates. Any error below is returned
// with state untouched; the caller may resubmit.
var (
	errAlreadyInitialized = errors.New("coordinator already initialized")
	errNotInitialized     = errors.New("coordinator not initialized")
	errUnauthorized       = errors.New("caller not authorized")

	errSwapNotFound         = errors.New("swap not found")
	errProposalNotFound     = errors.New("proposal not found")
	errMessageNotFound      = errors.New("message not found")
	errRelayerNotFound      = errors.New("relayer not found")
	errProofNotFound        = errors.New("proof not found")
	errVerificationNotFound = errors.New("verification not found")
	errChainNotFound        = errors.New("chain config not found")

	errInvalidState  = errors.New("operation not allowed in current state")
	errExpired       = errors.New("deadline has passed")
	errNotYetExpired = errors.New("deadline has not passed yet")

	errInvalidTimelock  = errors.New("timeout outside allowed timelock bounds")
	errUnsupportedChain = errors.New("chain not supported")
	errSameParty        = errors.New("initiator and participant must differ")
	errAlreadyFunded    = errors.New("party already deposited")
	errNotCounterparty  = errors.New("caller is not a party to this swap")

	errInvalidSecret = errors.New("secret does not match commitment")
	errEmptySecret   = errors.New("secret is empty")
	errSecretTooLong = errors.New("secret exceeds maximum length")

	errRelayerInactive   = errors.New("relayer is not active")
	errChainNotRelayable = errors.New("relayer does not support target chain")
	errEmptyPayload      = errors.New("message payload is empty")
	errNoChains          = errors.New("relayer must support at least one chain")

	errVerdictRecorded = errors.New("verification verdict already recorded")
	errNotVerifier     = errors.New("caller is not a trusted verifier")

	errBadRecordEncoding = errors.New("stored record has wrong encoding")
	errWrongCodecVersion = errors.New("stored record has wrong codec version")
)

// IsAlreadyInitialized reports whether [err] means Initialize already ran
// against this database. Hosts restarting with the same flags treat it as
// success.
func IsAlreadyInitialized(err error) bool {
	return errors.Is(err, errAlreadyInitialized)
}
