// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"encoding/binary"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
)

const (
	IsInitializedKey byte = iota
	AuthorityKey
	FeeRateKey
	ConfigKey
)

var (
	isInitializedKey = []byte{IsInitializedKey}
	authorityKey     = []byte{AuthorityKey}
	feeRateKey       = []byte{FeeRateKey}
	configKey        = []byte{ConfigKey}

	_ SingletonState = (*singletonState)(nil)
)

// SingletonState is a thin wrapper around a database holding the
// coordinator-wide values: the initialization marker, the administering
// authority, the current fee rate, and the policy config blob.
type SingletonState interface {
	IsInitialized() (bool, error)
	SetInitialized() error

	GetAuthority() (ids.ShortID, error)
	SetAuthority(ids.ShortID) error

	GetFeeRate() (uint32, error)
	SetFeeRate(uint32) error

	GetConfigBytes() ([]byte, error)
	SetConfigBytes([]byte) error
}

type singletonState struct {
	singletonDB database.Database
}

func NewSingletonState(db database.Database) SingletonState {
	return &singletonState{
		singletonDB: db,
	}
}

func (s *singletonState) IsInitialized() (bool, error) {
	return s.singletonDB.Has(isInitializedKey)
}

func (s *singletonState) SetInitialized() error {
	return s.singletonDB.Put(isInitializedKey, nil)
}

func (s *singletonState) GetAuthority() (ids.ShortID, error) {
	bytes, err := s.singletonDB.Get(authorityKey)
	if err != nil {
		return ids.ShortEmpty, err
	}
	return ids.ToShortID(bytes)
}

func (s *singletonState) SetAuthority(authority ids.ShortID) error {
	return s.singletonDB.Put(authorityKey, authority[:])
}

func (s *singletonState) GetFeeRate() (uint32, error) {
	bytes, err := s.singletonDB.Get(feeRateKey)
	if err != nil {
		return 0, err
	}
	if len(bytes) != 4 {
		return 0, errBadRecordEncoding
	}
	return binary.BigEndian.Uint32(bytes), nil
}

func (s *singletonState) SetFeeRate(rate uint32) error {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, rate)
	return s.singletonDB.Put(feeRateKey, bytes)
}

// GetConfigBytes returns the stored policy config blob, or nil when none
// has been written (databases initialized before the blob was persisted).
func (s *singletonState) GetConfigBytes() ([]byte, error) {
	bytes, err := s.singletonDB.Get(configKey)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

func (s *singletonState) SetConfigBytes(configBytes []byte) error {
	return s.singletonDB.Put(configKey, configBytes)
}
