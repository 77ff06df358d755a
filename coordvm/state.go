// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database
	// object.
	singletonStatePrefix = []byte("singleton")
	swapStatePrefix      = []byte("swap")
	messageStatePrefix   = []byte("message")
	chainStatePrefix     = []byte("chain")

	_ State = (*state)(nil)
)

// State aggregates the coordinator's sub-states over one versioned
// database. Every operation's mutations stay pending until Commit; Abort
// discards them, which is what gives operations their all-or-nothing
// semantics.
type State interface {
	SingletonState
	SwapState
	MessageState
	ChainState

	Commit() error
	Abort()
	Close() error
}

type state struct {
	SingletonState
	SwapState
	MessageState
	ChainState

	baseDB *versiondb.Database
}

func NewState(db database.Database) State {
	// create a new baseDB
	baseDB := versiondb.New(db)

	// create prefixed sub-databases from baseDB
	singletonDB := prefixdb.New(singletonStatePrefix, baseDB)
	swapDB := prefixdb.New(swapStatePrefix, baseDB)
	messageDB := prefixdb.New(messageStatePrefix, baseDB)
	chainDB := prefixdb.New(chainStatePrefix, baseDB)

	return &state{
		SingletonState: NewSingletonState(singletonDB),
		SwapState:      NewSwapState(swapDB),
		MessageState:   NewMessageState(messageDB),
		ChainState:     NewChainState(chainDB),
		baseDB:         baseDB,
	}
}

// Commit flushes pending operations to baseDB.
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

// Abort drops pending operations and evicts the record caches, which may
// hold entries written during the aborted operation.
func (s *state) Abort() {
	s.baseDB.Abort()
	s.ClearSwapCache()
	s.ClearMessageCache()
}

// Close closes the underlying base database.
func (s *state) Close() error {
	return s.baseDB.Close()
}
