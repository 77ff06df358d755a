// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"github.com/ava-labs/avalanchego/codec"
	"github.com/ava-labs/avalanchego/codec/linearcodec"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// CodecVersion is the current default codec version
	CodecVersion = 0
)

// Codecs do serialization and deserialization of stored records.
var (
	Codec codec.Manager
)

func init() {
	c := linearcodec.NewDefault()
	Codec = codec.NewDefaultManager()

	errs := wrappers.Errs{}

	errs.Add(
		c.RegisterType(&Swap{}),
		c.RegisterType(&SwapProposal{}),
		c.RegisterType(&CrossChainMessage{}),
		c.RegisterType(&Relayer{}),
		c.RegisterType(&ChainStats{}),
		c.RegisterType(&ChainConfig{}),
		c.RegisterType(&Proof{}),
		c.RegisterType(&VerifiedProof{}),
	)

	errs.Add(
		Codec.RegisterCodec(CodecVersion, c),
	)
	if errs.Errored() {
		panic(errs.Err)
	}
}
