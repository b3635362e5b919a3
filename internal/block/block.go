package block

import (
	"encoding/binary"
	"errors"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/merkle"
)

// Block is a mined or received block: the wire header plus its
// transaction list, with the merkle tree kept alongside so Proof/Verify
// calls don't have to rebuild it.
type Block struct {
	Height uint64
	Header Header
	Txs    []ledger.SignedTx

	tree *merkle.Tree[Tx]
}

// New assembles an unmined block: builds the merkle tree over txs (coinbase
// first, per spec §4.5's "prepend a coinbase/reward tx"), computes the
// merkle root, and fills in every header field except nonce, which Mine
// searches for.
func New(height uint64, parentHash [32]byte, timestamp float64, difficulty uint32, miner crypto.Address, mode ModeTag, txs []ledger.SignedTx) (*Block, error) {
	tree, err := merkle.NewTree(txsToLeaves(txs))
	if err != nil {
		return nil, err
	}

	var root [32]byte
	copy(root[:], tree.MerkleRoot())

	b := &Block{
		Height: height,
		Header: Header{
			ParentHash:   parentHash,
			MerkleRoot:   root,
			Timestamp:    timestamp,
			Difficulty:   difficulty,
			MinerAddress: miner,
			Mode:         mode,
		},
		Txs:  txs,
		tree: tree,
	}
	return b, nil
}

// Hash returns the block header's hash, the block's unique identifier.
func (b *Block) Hash() [32]byte {
	return b.Header.Hash()
}

// Encode produces the bit-exact wire encoding: header, then varint
// tx_count, then each transaction's own wire encoding, per spec §6.
func (b *Block) Encode() ([]byte, error) {
	buf := b.Header.Encode()

	var cnt [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(cnt[:], uint64(len(b.Txs)))
	buf = append(buf, cnt[:n]...)

	for _, tx := range b.Txs {
		txBytes, err := tx.Encode()
		if err != nil {
			return nil, err
		}
		buf = append(buf, txBytes...)
	}
	return buf, nil
}

// Decode parses the bit-exact wire encoding produced by Encode and rebuilds
// the merkle tree over the decoded transactions.
func Decode(b []byte) (*Block, error) {
	header, pos, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}

	count, n := binary.Uvarint(b[pos:])
	if n <= 0 {
		return nil, errors.New("block: malformed tx_count varint")
	}
	pos += n

	txs := make([]ledger.SignedTx, 0, count)
	for i := uint64(0); i < count; i++ {
		tx, err := ledger.DecodeTx(b[pos:])
		if err != nil {
			return nil, err
		}
		wire, err := tx.Encode()
		if err != nil {
			return nil, err
		}
		pos += len(wire)
		txs = append(txs, tx)
	}

	tree, err := merkle.NewTree(txsToLeaves(txs))
	if err != nil {
		return nil, err
	}

	return &Block{Header: header, Txs: txs, tree: tree}, nil
}

// MerkleTree exposes the underlying tree for proof generation/verification.
func (b *Block) MerkleTree() *merkle.Tree[Tx] {
	return b.tree
}

// SizeBytes returns the block's wire-encoded size, used against the mode's
// size cap.
func (b *Block) SizeBytes() (int, error) {
	enc, err := b.Encode()
	if err != nil {
		return 0, err
	}
	return len(enc), nil
}
