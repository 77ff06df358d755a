// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

// Leaves and interior nodes are hashed under distinct prefixes so a path
// cannot be reinterpreted across levels.
var (
	merkleLeafPrefix     = []byte{0x00}
	merkleInteriorPrefix = []byte{0x01}
)

// ProofStep is one sibling hash on a merkle audit path. Left reports which
// side of the concatenation the sibling occupies.
type ProofStep struct {
	Sibling ids.ID `serialize:"true" json:"sibling"`
	Left    bool   `serialize:"true" json:"left"`
}

// merkleLeaf hashes [txHash] as a tree leaf.
func merkleLeaf(txHash ids.ID) ids.ID {
	buf := make([]byte, 0, 1+len(txHash))
	buf = append(buf, merkleLeafPrefix...)
	buf = append(buf, txHash[:]...)
	return hashing.ComputeHash256Array(buf)
}

// merkleInterior hashes an interior node from its ordered children.
func merkleInterior(left ids.ID, right ids.ID) ids.ID {
	buf := make([]byte, 0, 1+2*len(left))
	buf = append(buf, merkleInteriorPrefix...)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return hashing.ComputeHash256Array(buf)
}

// verifyMerklePath re-derives the root committed by [path] starting from the
// leaf for [txHash] and reports whether it equals [root]. An empty path is
// valid only for a single-leaf tree.
func verifyMerklePath(txHash ids.ID, path []ProofStep, root ids.ID) bool {
	node := merkleLeaf(txHash)
	for _, step := range path {
		if step.Left {
			node = merkleInterior(step.Sibling, node)
		} else {
			node = merkleInterior(node, step.Sibling)
		}
	}
	return node == root
}
