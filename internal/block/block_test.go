package block

import (
	"context"
	"testing"

	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/money"
)

func mustMiner(t *testing.T) *crypto.ECDSAIdentity {
	t.Helper()
	id, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("GenerateECDSAIdentity: %v", err)
	}
	return id
}

func coinbaseTx(t *testing.T, height uint64, to crypto.Address) ledger.SignedTx {
	t.Helper()
	tx := ledger.Tx{
		Type:      ledger.TxMiningReward,
		To:        to,
		Amount:    Schedule(height),
		Fee:       money.Zero(),
		Timestamp: 1_700_000_000,
	}
	signed, err := tx.Sign(mustMiner(t))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return signed
}

func minedBlock(t *testing.T, height uint64, parentHash [32]byte, difficulty uint32) (*Block, crypto.Address) {
	t.Helper()
	miner := mustMiner(t)
	txs := []ledger.SignedTx{coinbaseTx(t, height, miner.Address())}

	b, err := New(height, parentHash, 1_700_000_100, difficulty, miner.Address(), ModeOffGrid, txs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Mine(context.Background(), b, func(string, ...any) {}); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	return b, miner.Address()
}

func Test_MinedBlockMeetsDifficulty(t *testing.T) {
	b, _ := minedBlock(t, 1, [32]byte{}, 8)
	if !MeetsDifficulty(b.Hash(), 8) {
		t.Fatalf("mined block does not meet its own target difficulty")
	}
}

func Test_EncodeDecodeRoundTrip(t *testing.T) {
	b, _ := minedBlock(t, 1, [32]byte{9: 1}, 4)

	wire, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(wire)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Hash() != b.Hash() {
		t.Fatalf("decoded header hash mismatch: got %x want %x", decoded.Hash(), b.Hash())
	}
	if len(decoded.Txs) != len(b.Txs) {
		t.Fatalf("decoded tx count = %d, want %d", len(decoded.Txs), len(b.Txs))
	}
}

func Test_ValidateBlock_MerkleRootMismatch(t *testing.T) {
	b, _ := minedBlock(t, 1, [32]byte{}, 1)
	parent := &Block{Height: 0, Header: Header{Timestamp: 1_700_000_000}}

	b.Header.MerkleRoot[0] ^= 0xFF

	cfg := Config{SizeCapBytes: 1 << 20, TxCountCap: 100, TDriftSeconds: 300}
	err := ValidateBlock(b, parent, cfg, 1_700_000_200, 0, Lookups{})
	if err != ErrMerkleRootMismatch {
		t.Fatalf("got err %v, want ErrMerkleRootMismatch", err)
	}
}

func Test_ValidateBlock_WrongHeight(t *testing.T) {
	b, _ := minedBlock(t, 5, [32]byte{}, 1)
	parent := &Block{Height: 0, Header: Header{Timestamp: 1_700_000_000}}

	cfg := Config{SizeCapBytes: 1 << 20, TxCountCap: 100, TDriftSeconds: 300}
	err := ValidateBlock(b, parent, cfg, 1_700_000_200, 0, Lookups{})
	if err != ErrWrongHeight {
		t.Fatalf("got err %v, want ErrWrongHeight", err)
	}
}

func Test_ValidateBlock_TxCountCapExceeded(t *testing.T) {
	miner := mustMiner(t)
	txs := []ledger.SignedTx{coinbaseTx(t, 1, miner.Address()), coinbaseTx(t, 1, miner.Address())}

	b, err := New(1, [32]byte{}, 1_700_000_100, 1, miner.Address(), ModeOffGrid, txs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Mine(context.Background(), b, func(string, ...any) {}); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	parent := &Block{Height: 0, Header: Header{Timestamp: 1_700_000_000}}
	cfg := Config{SizeCapBytes: 1 << 20, TxCountCap: 1, TDriftSeconds: 300}
	err = ValidateBlock(b, parent, cfg, 1_700_000_200, 0, Lookups{})
	if err != ErrTxCountCapExceeded {
		t.Fatalf("got err %v, want ErrTxCountCapExceeded", err)
	}
}

func Test_ValidateBlock_RewardAmountWrong(t *testing.T) {
	miner := mustMiner(t)
	tx := ledger.Tx{
		Type:      ledger.TxMiningReward,
		To:        miner.Address(),
		Amount:    money.FromUnits(999),
		Fee:       money.Zero(),
		Timestamp: 1_700_000_100,
	}
	signed, err := tx.Sign(miner)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	b, err := New(1, [32]byte{}, 1_700_000_100, 1, miner.Address(), ModeOffGrid, []ledger.SignedTx{signed})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Mine(context.Background(), b, func(string, ...any) {}); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	parent := &Block{Height: 0, Header: Header{Timestamp: 1_700_000_000}}
	cfg := Config{SizeCapBytes: 1 << 20, TxCountCap: 10, TDriftSeconds: 300}
	err = ValidateBlock(b, parent, cfg, 1_700_000_200, 0, Lookups{})
	if err != ErrRewardAmountWrong {
		t.Fatalf("got err %v, want ErrRewardAmountWrong", err)
	}
}

func Test_ValidateBlock_TimestampDriftRejected(t *testing.T) {
	b, _ := minedBlock(t, 1, [32]byte{}, 1)
	parent := &Block{Height: 0, Header: Header{Timestamp: 1_700_000_000}}

	cfg := Config{SizeCapBytes: 1 << 20, TxCountCap: 10, TDriftSeconds: 10}
	// now is far enough in the past that the block's timestamp exceeds
	// now + 2*TDriftSeconds.
	err := ValidateBlock(b, parent, cfg, 1_600_000_000, 0, Lookups{})
	if err != ErrTimestampDrift {
		t.Fatalf("got err %v, want ErrTimestampDrift", err)
	}
}

func Test_ValidateBlock_QuorumNotMet(t *testing.T) {
	b, _ := minedBlock(t, 1, [32]byte{}, 1)
	parent := &Block{Height: 0, Header: Header{Timestamp: 1_700_000_000}}

	cfg := Config{SizeCapBytes: 1 << 20, TxCountCap: 10, TDriftSeconds: 300}
	err := ValidateBlock(b, parent, cfg, 1_700_000_200, 1, Lookups{})
	if err != ErrQuorumNotMet {
		t.Fatalf("got err %v, want ErrQuorumNotMet", err)
	}
}

func Test_Schedule_HalvesAtInterval(t *testing.T) {
	first := Schedule(0)
	afterOneHalving := Schedule(HalvingIntervalBlocks)
	if first.Cmp(afterOneHalving) <= 0 {
		t.Fatalf("reward did not decrease after one halving interval")
	}
}

func Test_Retarget_ClampsToRange(t *testing.T) {
	// Actual span wildly shorter than target -> ratio clamps to 4x -> +2 bits.
	next := Retarget(10, 1, 1000, 1)
	if next != 12 {
		t.Fatalf("Retarget fast span: got %d, want 12", next)
	}

	// Actual span wildly longer than target -> ratio clamps to 0.25x -> -2 bits.
	next = Retarget(10, 1000, 1, 1)
	if next != 8 {
		t.Fatalf("Retarget slow span: got %d, want 8", next)
	}
}
