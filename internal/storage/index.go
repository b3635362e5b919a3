package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	bolt "go.etcd.io/bbolt"

	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/coordgrid"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
)

var (
	bucketBlocksByHash  = []byte("blocks_by_hash")
	bucketHeightToHash  = []byte("height_to_hash")
	bucketTxByHash      = []byte("tx_by_hash")
	bucketBlockIndex    = []byte("block_index_by_hash")
	bucketAccounts      = []byte("account_by_address")
	bucketContracts     = []byte("contract_by_id")
	bucketCells         = []byte("cell_by_coordinate")
	bucketUndo          = []byte("undo_by_block_hash")
)

// BlockStatus tracks where a block sits relative to the best chain,
// grounded on store/db.go's BlockStatus enum.
type BlockStatus byte

const (
	BlockStatusUnknown  BlockStatus = 0
	BlockStatusValid    BlockStatus = 1
	BlockStatusInvalid  BlockStatus = 2
	BlockStatusOrphaned BlockStatus = 3
)

// BlockIndexEntry is the per-block-hash record the best-chain/fork
// bookkeeping needs: its place in the chain and its accumulated work.
type BlockIndexEntry struct {
	Height         uint64
	ParentHash     [32]byte
	CumulativeWork *big.Int
	Status         BlockStatus
}

// TxLocation points a transaction hash at the block that contains it,
// spec §4.7's tx_hash→(block_hash, index) index entry.
type TxLocation struct {
	BlockHash [32]byte
	Index     uint32
}

// Index is the mutable key-value store spec §4.7 describes: block
// location, height→hash (best chain only), tx location, account state,
// contract state, and coordinate-cell counters, all in one bbolt file.
// Grounded on `store/db.go`'s DB type and bucket layout, generalized from
// a UTXO model to this chain's account/contract/cell model.
type Index struct {
	db *bolt.DB
}

// OpenIndex opens (or creates) the bbolt index file at path, creating
// every bucket on first use.
func OpenIndex(path string) (*Index, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open index: %w", err)
	}

	buckets := [][]byte{
		bucketBlocksByHash, bucketHeightToHash, bucketTxByHash,
		bucketBlockIndex, bucketAccounts, bucketContracts, bucketCells,
		bucketUndo,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("storage: create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

// Close releases the index's file handle.
func (idx *Index) Close() error { return idx.db.Close() }

// --- block location / height / tx ------------------------------------

func (idx *Index) PutBlockLocation(hash [32]byte, loc Location) error {
	val := encodeLocation(loc)
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlocksByHash).Put(hash[:], val)
	})
}

func (idx *Index) GetBlockLocation(hash [32]byte) (Location, bool, error) {
	var loc Location
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlocksByHash).Get(hash[:])
		if v == nil {
			return nil
		}
		loc = decodeLocation(v)
		ok = true
		return nil
	})
	return loc, ok, err
}

func (idx *Index) PutHeightToHash(height uint64, hash [32]byte) error {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], height)
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHeightToHash).Put(key[:], hash[:])
	})
}

func (idx *Index) GetHashAtHeight(height uint64) ([32]byte, bool, error) {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], height)

	var hash [32]byte
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeightToHash).Get(key[:])
		if v == nil {
			return nil
		}
		copy(hash[:], v)
		ok = true
		return nil
	})
	return hash, ok, err
}

func (idx *Index) PutTxLocation(txHash [32]byte, loc TxLocation) error {
	val := make([]byte, 36)
	copy(val[:32], loc.BlockHash[:])
	binary.BigEndian.PutUint32(val[32:], loc.Index)
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTxByHash).Put(txHash[:], val)
	})
}

func (idx *Index) GetTxLocation(txHash [32]byte) (TxLocation, bool, error) {
	var loc TxLocation
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTxByHash).Get(txHash[:])
		if v == nil || len(v) != 36 {
			return nil
		}
		copy(loc.BlockHash[:], v[:32])
		loc.Index = binary.BigEndian.Uint32(v[32:])
		ok = true
		return nil
	})
	return loc, ok, err
}

// --- block index (height/parent/work/status) --------------------------

func (idx *Index) PutBlockIndexEntry(hash [32]byte, e BlockIndexEntry) error {
	val, err := encodeBlockIndexEntry(e)
	if err != nil {
		return err
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlockIndex).Put(hash[:], val)
	})
}

func (idx *Index) GetBlockIndexEntry(hash [32]byte) (BlockIndexEntry, bool, error) {
	var e BlockIndexEntry
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlockIndex).Get(hash[:])
		if v == nil {
			return nil
		}
		decoded, err := decodeBlockIndexEntry(v)
		if err != nil {
			return err
		}
		e = decoded
		ok = true
		return nil
	})
	return e, ok, err
}

// --- accounts -----------------------------------------------------------

func (idx *Index) PutAccount(acct ledger.Account) error {
	val, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).Put(acct.Address[:], val)
	})
}

func (idx *Index) GetAccount(addr crypto.Address) (ledger.Account, bool, error) {
	var acct ledger.Account
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAccounts).Get(addr[:])
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &acct); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return acct, ok, err
}

func (idx *Index) DeleteAccount(addr crypto.Address) error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).Delete(addr[:])
	})
}

// ForEachAccount walks every persisted account, stopping early if fn
// returns an error. Used by the admin tooling to dump ledger state
// without the Chain actor's in-process tracking.
func (idx *Index) ForEachAccount(fn func(ledger.Account) error) error {
	return idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(_, v []byte) error {
			var acct ledger.Account
			if err := json.Unmarshal(v, &acct); err != nil {
				return err
			}
			return fn(acct)
		})
	})
}

// --- contracts ------------------------------------------------------------

func (idx *Index) PutContract(c contract.Contract) error {
	val, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContracts).Put(c.ID[:], val)
	})
}

func (idx *Index) GetContract(id [32]byte) (contract.Contract, bool, error) {
	var c contract.Contract
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketContracts).Get(id[:])
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return c, ok, err
}

func (idx *Index) DeleteContract(id [32]byte) error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContracts).Delete(id[:])
	})
}

// ForEachContract walks every persisted contract, stopping early if fn
// returns an error. Used by the admin tooling to dump ledger state
// without the Chain actor's in-process tracking.
func (idx *Index) ForEachContract(fn func(contract.Contract) error) error {
	return idx.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContracts).ForEach(func(_, v []byte) error {
			var c contract.Contract
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			return fn(c)
		})
	})
}

// --- coordinate cells -----------------------------------------------------

func (idx *Index) PutCell(snapshot coordgrid.Cell) error {
	val, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCells).Put(cellKey(snapshot.Lat, snapshot.Lng), val)
	})
}

func (idx *Index) GetCell(lat, lng int) (coordgrid.Cell, bool, error) {
	var c coordgrid.Cell
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCells).Get(cellKey(lat, lng))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}
		ok = true
		return nil
	})
	return c, ok, err
}

func cellKey(lat, lng int) []byte {
	var key [8]byte
	binary.BigEndian.PutUint32(key[:4], uint32(int32(lat)))
	binary.BigEndian.PutUint32(key[4:], uint32(int32(lng)))
	return key[:]
}

// --- undo records ----------------------------------------------------------

func (idx *Index) PutUndo(blockHash [32]byte, u UndoRecord) error {
	val, err := encodeUndoRecord(u)
	if err != nil {
		return err
	}
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUndo).Put(blockHash[:], val)
	})
}

func (idx *Index) GetUndo(blockHash [32]byte) (UndoRecord, bool, error) {
	var u UndoRecord
	var ok bool
	err := idx.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketUndo).Get(blockHash[:])
		if v == nil {
			return nil
		}
		decoded, err := decodeUndoRecord(v)
		if err != nil {
			return err
		}
		u = decoded
		ok = true
		return nil
	})
	return u, ok, err
}

func (idx *Index) DeleteUndo(blockHash [32]byte) error {
	return idx.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUndo).Delete(blockHash[:])
	})
}

// --- small fixed-size codecs ------------------------------------------

func encodeLocation(loc Location) []byte {
	buf := make([]byte, 4+8+4)
	binary.BigEndian.PutUint32(buf[0:4], loc.Segment)
	binary.BigEndian.PutUint64(buf[4:12], uint64(loc.Offset))
	binary.BigEndian.PutUint32(buf[12:16], loc.Length)
	return buf
}

func decodeLocation(b []byte) Location {
	return Location{
		Segment: binary.BigEndian.Uint32(b[0:4]),
		Offset:  int64(binary.BigEndian.Uint64(b[4:12])),
		Length:  binary.BigEndian.Uint32(b[12:16]),
	}
}

func encodeBlockIndexEntry(e BlockIndexEntry) ([]byte, error) {
	if e.CumulativeWork == nil || e.CumulativeWork.Sign() < 0 {
		return nil, fmt.Errorf("storage: cumulative_work required")
	}
	work := e.CumulativeWork.Bytes()
	if len(work) > 0xffff {
		return nil, fmt.Errorf("storage: cumulative_work too large")
	}
	// height u64 | parent_hash 32 | status u8 | work_len u16 | work_bytes
	out := make([]byte, 8+32+1+2+len(work))
	binary.BigEndian.PutUint64(out[0:8], e.Height)
	copy(out[8:40], e.ParentHash[:])
	out[40] = byte(e.Status)
	binary.BigEndian.PutUint16(out[41:43], uint16(len(work)))
	copy(out[43:], work)
	return out, nil
}

func decodeBlockIndexEntry(b []byte) (BlockIndexEntry, error) {
	if len(b) < 43 {
		return BlockIndexEntry{}, fmt.Errorf("storage: truncated block index entry")
	}
	var e BlockIndexEntry
	e.Height = binary.BigEndian.Uint64(b[0:8])
	copy(e.ParentHash[:], b[8:40])
	e.Status = BlockStatus(b[40])
	workLen := int(binary.BigEndian.Uint16(b[41:43]))
	if 43+workLen != len(b) {
		return BlockIndexEntry{}, fmt.Errorf("storage: bad work length")
	}
	e.CumulativeWork = new(big.Int).SetBytes(b[43:])
	return e, nil
}
