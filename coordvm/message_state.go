// (c) 2023-2024, Verinode Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package coordvm

import (
	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/ids"
)

const messageCacheSize = 8192

var (
	messageRecordPrefix  = []byte("record")
	messagePendingPrefix = []byte("pending")
	relayerRecordPrefix  = []byte("relayer")
	relayerAddrPrefix    = []byte("relayer_addr")
	chainStatsPrefix     = []byte("chain_stats")

	lastMessageIDKey = []byte("last_message_id")
	lastRelayerIDKey = []byte("last_relayer_id")

	_ MessageState = (*messageState)(nil)
)

// MessageState owns message and relayer records, the pending-message
// index, per-chain delivery stats, and the id counters. Relayers are
// additionally indexed by address so caller authorization is a point
// lookup rather than a scan.
type MessageState interface {
	GetMessage(messageID uint64) (*CrossChainMessage, error)
	PutMessage(msg *CrossChainMessage) error

	AddPendingMessage(messageID uint64) error
	RemovePendingMessage(messageID uint64) error
	PendingMessages() ([]uint64, error)

	LastMessageID() (uint64, error)
	SetLastMessageID(messageID uint64) error

	GetRelayer(relayerID uint64) (*Relayer, error)
	GetRelayerByAddress(address ids.ShortID) (*Relayer, error)
	PutRelayer(relayer *Relayer) error
	LastRelayerID() (uint64, error)
	SetLastRelayerID(relayerID uint64) error

	GetChainStats(chainID uint32) (*ChainStats, error)
	PutChainStats(stats *ChainStats) error

	ClearMessageCache()
}

type messageState struct {
	msgCache     cache.Cacher
	recordDB     database.Database
	pendingDB    database.Database
	relayerDB    database.Database
	relayerIdxDB database.Database
	statsDB      database.Database
	metaDB       database.Database
}

func NewMessageState(db database.Database) MessageState {
	return &messageState{
		msgCache:     &cache.LRU{Size: messageCacheSize},
		recordDB:     prefixdb.New(messageRecordPrefix, db),
		pendingDB:    prefixdb.New(messagePendingPrefix, db),
		relayerDB:    prefixdb.New(relayerRecordPrefix, db),
		relayerIdxDB: prefixdb.New(relayerAddrPrefix, db),
		statsDB:      prefixdb.New(chainStatsPrefix, db),
		metaDB:       db,
	}
}

func (s *messageState) GetMessage(messageID uint64) (*CrossChainMessage, error) {
	if msgIntf, cached := s.msgCache.Get(messageID); cached {
		if msgIntf == nil {
			return nil, errMessageNotFound
		}
		return msgIntf.(*CrossChainMessage), nil
	}

	bytes, err := s.recordDB.Get(packUint64(messageID))
	if err == database.ErrNotFound {
		s.msgCache.Put(messageID, nil)
		return nil, errMessageNotFound
	}
	if err != nil {
		return nil, err
	}

	msg := &CrossChainMessage{}
	parsedVersion, err := Codec.Unmarshal(bytes, msg)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}

	s.msgCache.Put(messageID, msg)
	return msg, nil
}

func (s *messageState) PutMessage(msg *CrossChainMessage) error {
	bytes, err := Codec.Marshal(CodecVersion, msg)
	if err != nil {
		return err
	}
	s.msgCache.Put(msg.MessageID, msg)
	return s.recordDB.Put(packUint64(msg.MessageID), bytes)
}

func (s *messageState) AddPendingMessage(messageID uint64) error {
	return s.pendingDB.Put(packUint64(messageID), nil)
}

func (s *messageState) RemovePendingMessage(messageID uint64) error {
	return s.pendingDB.Delete(packUint64(messageID))
}

func (s *messageState) PendingMessages() ([]uint64, error) {
	iter := s.pendingDB.NewIterator()
	defer iter.Release()

	pending := []uint64{}
	for iter.Next() {
		messageID, err := unpackUint64(iter.Key())
		if err != nil {
			return nil, err
		}
		pending = append(pending, messageID)
	}
	return pending, iter.Error()
}

func (s *messageState) LastMessageID() (uint64, error) {
	return getCounter(s.metaDB, lastMessageIDKey)
}

func (s *messageState) SetLastMessageID(messageID uint64) error {
	return s.metaDB.Put(lastMessageIDKey, packUint64(messageID))
}

func (s *messageState) GetRelayer(relayerID uint64) (*Relayer, error) {
	bytes, err := s.relayerDB.Get(packUint64(relayerID))
	if err == database.ErrNotFound {
		return nil, errRelayerNotFound
	}
	if err != nil {
		return nil, err
	}

	relayer := &Relayer{}
	parsedVersion, err := Codec.Unmarshal(bytes, relayer)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}
	return relayer, nil
}

func (s *messageState) GetRelayerByAddress(address ids.ShortID) (*Relayer, error) {
	bytes, err := s.relayerIdxDB.Get(address[:])
	if err == database.ErrNotFound {
		return nil, errRelayerNotFound
	}
	if err != nil {
		return nil, err
	}
	relayerID, err := unpackUint64(bytes)
	if err != nil {
		return nil, err
	}
	return s.GetRelayer(relayerID)
}

func (s *messageState) PutRelayer(relayer *Relayer) error {
	bytes, err := Codec.Marshal(CodecVersion, relayer)
	if err != nil {
		return err
	}
	if err := s.relayerDB.Put(packUint64(relayer.RelayerID), bytes); err != nil {
		return err
	}
	return s.relayerIdxDB.Put(relayer.Address[:], packUint64(relayer.RelayerID))
}

func (s *messageState) LastRelayerID() (uint64, error) {
	return getCounter(s.metaDB, lastRelayerIDKey)
}

func (s *messageState) SetLastRelayerID(relayerID uint64) error {
	return s.metaDB.Put(lastRelayerIDKey, packUint64(relayerID))
}

// GetChainStats returns a zeroed record for chains that have no samples
// yet, so callers can roll in the first sample uniformly.
func (s *messageState) GetChainStats(chainID uint32) (*ChainStats, error) {
	bytes, err := s.statsDB.Get(packUint32(chainID))
	if err == database.ErrNotFound {
		return &ChainStats{ChainID: chainID}, nil
	}
	if err != nil {
		return nil, err
	}

	stats := &ChainStats{}
	parsedVersion, err := Codec.Unmarshal(bytes, stats)
	if err != nil {
		return nil, err
	}
	if parsedVersion != CodecVersion {
		return nil, errWrongCodecVersion
	}
	return stats, nil
}

func (s *messageState) PutChainStats(stats *ChainStats) error {
	bytes, err := Codec.Marshal(CodecVersion, stats)
	if err != nil {
		return err
	}
	return s.statsDB.Put(packUint32(stats.ChainID), bytes)
}

func (s *messageState) ClearMessageCache() {
	s.msgCache.Flush()
}
