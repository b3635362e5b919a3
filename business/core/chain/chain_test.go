package chain

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/coordgrid"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/genesis"
	"github.com/caiorlm/logichain/internal/ledger"
	"github.com/caiorlm/logichain/internal/money"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "logichain-chain-*")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func newTestChain(t *testing.T, seed map[string]uint64) (*Chain, *crypto.ECDSAIdentity) {
	t.Helper()

	id, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	g := genesis.Default()
	g.Difficulty = 1
	g.Balances = seed

	c, err := New(Config{
		DataDir:      tempDir(t),
		Genesis:      g,
		MinerAddress: id.Address(),
	})
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	t.Cleanup(func() { _ = c.Shutdown() })
	return c, id
}

func Test_NewChainBootstrapsGenesis(t *testing.T) {
	id, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	c, _ := newTestChain(t, map[string]uint64{id.Address().String(): 5_000})

	tip := c.QueryTip()
	if tip.Height != 0 {
		t.Fatalf("expected genesis tip height 0, got %d", tip.Height)
	}

	acct, err := c.QueryAccount(id.Address())
	if err != nil {
		t.Fatalf("query seeded account: %v", err)
	}
	want, _ := money.FromUnits(5_000).MarshalBinary()
	got, _ := acct.Balance.MarshalBinary()
	if got != want {
		t.Fatalf("seeded balance mismatch: got %s want 5000 units", acct.Balance)
	}
}

func Test_SubmitTransactionAdmitsToMempool(t *testing.T) {
	sender, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	recipient, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	c, _ := newTestChain(t, map[string]uint64{sender.Address().String(): 10_000})

	tx := ledger.Tx{
		Type:   ledger.TxTransfer,
		From:   sender.Address(),
		To:     recipient.Address(),
		Amount: money.FromUnits(100),
		Fee:    money.Zero(),
		Nonce:  1,
	}
	signed, err := tx.Sign(sender)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}

	if err := c.SubmitTransaction(signed, nil); err != nil {
		t.Fatalf("submit transaction: %v", err)
	}
	if got := c.QueryMempoolCount(); got != 1 {
		t.Fatalf("expected 1 pending tx, got %d", got)
	}
}

func Test_SubmitTransactionRejectsBadSignature(t *testing.T) {
	sender, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	recipient, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	c, _ := newTestChain(t, map[string]uint64{sender.Address().String(): 10_000})

	tx := ledger.Tx{
		Type:   ledger.TxTransfer,
		From:   sender.Address(),
		To:     recipient.Address(),
		Amount: money.FromUnits(100),
		Fee:    money.Zero(),
		Nonce:  1,
	}
	signed, err := tx.Sign(sender)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	signed.Tx.Amount = money.FromUnits(999) // tamper after signing

	if err := c.SubmitTransaction(signed, nil); err == nil {
		t.Fatalf("expected tampered transaction to fail verification")
	}
}

func Test_MineNewBlockAppliesTransfer(t *testing.T) {
	sender, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	recipient, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	g := genesis.Default()
	g.Mode = genesis.ModeOffGrid
	g.Difficulty = 1
	g.Balances = map[string]uint64{sender.Address().String(): 10_000}

	c, err := New(Config{
		DataDir:      tempDir(t),
		Genesis:      g,
		MinerAddress: sender.Address(),
	})
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	defer c.Shutdown()

	tx := ledger.Tx{
		Type:   ledger.TxTransfer,
		From:   sender.Address(),
		To:     recipient.Address(),
		Amount: money.FromUnits(100),
		Fee:    money.Zero(),
		Nonce:  1,
	}
	signed, err := tx.Sign(sender)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	if err := c.SubmitTransaction(signed, nil); err != nil {
		t.Fatalf("submit transaction: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := c.MineNewBlock(ctx)
	if err != nil {
		t.Fatalf("mine block: %v", err)
	}
	if b.Height != 1 {
		t.Fatalf("expected mined block at height 1, got %d", b.Height)
	}

	tip := c.QueryTip()
	if tip.Height != 1 || tip.Hash != b.Hash() {
		t.Fatalf("tip not advanced to mined block: %+v", tip)
	}

	recvAcct, err := c.QueryAccount(recipient.Address())
	if err != nil {
		t.Fatalf("query recipient: %v", err)
	}
	if recvAcct.Balance.IsZero() {
		t.Fatalf("recipient did not receive transfer")
	}

	if got := c.QueryMempoolCount(); got != 0 {
		t.Fatalf("expected mined tx removed from mempool, got %d pending", got)
	}
}

func Test_QueryAccountUnknownAddressFails(t *testing.T) {
	c, _ := newTestChain(t, nil)
	unknown, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	if _, err := c.QueryAccount(unknown.Address()); err != ErrAccountNotFound {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func Test_QueryContractUnknownIDFails(t *testing.T) {
	c, _ := newTestChain(t, nil)
	if _, err := c.QueryContract([32]byte{1}); err != ErrContractNotFound {
		t.Fatalf("expected ErrContractNotFound, got %v", err)
	}
}

func newContractCreateTx(t *testing.T, creator *crypto.ECDSAIdentity, contractID byte, pickup, delivery contract.Coordinate) ledger.SignedTx {
	t.Helper()
	payload, err := contract.EncodeCreate(contract.CreatePayload{
		ContractID:            [32]byte{contractID},
		Pickup:                pickup,
		Delivery:              delivery,
		ToleranceRadiusMeters: 50,
		MaxErrorMeters:        15,
		Cargo:                 contract.CargoManifest{CargoType: "produce", WeightKg: 100},
		Escrow:                money.FromUnits(10),
		ExpiresAt:             1e12,
	})
	if err != nil {
		t.Fatalf("encode create payload: %v", err)
	}
	tx := ledger.Tx{
		Type:    ledger.TxContractCreate,
		From:    creator.Address(),
		To:      creator.Address(),
		Amount:  money.Zero(),
		Nonce:   1,
		Fee:     money.Zero(),
		Payload: payload,
	}
	signed, err := tx.Sign(creator)
	if err != nil {
		t.Fatalf("sign create tx: %v", err)
	}
	return signed
}

// Test_ContractCreateEnforcesCoordinateSaturation exercises grid §4.2's
// ops-per-minute cap through the real applyContractCreate path (not
// grid_test.go's direct Grid calls): with the cap set to 1, a second
// CONTRACT_CREATE at the same pickup cell within the same minute must
// fail the block that carries it with ErrCoordinateSaturated.
func Test_ContractCreateEnforcesCoordinateSaturation(t *testing.T) {
	creator1, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	creator2, err := crypto.GenerateECDSAIdentity()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}

	g := genesis.Default()
	g.Mode = genesis.ModeOffGrid
	g.Difficulty = 1
	g.MaxCoordinateOpsPerMinute = 1
	g.Balances = map[string]uint64{
		creator1.Address().String(): 1_000,
		creator2.Address().String(): 1_000,
	}

	c, err := New(Config{
		DataDir:      tempDir(t),
		Genesis:      g,
		MinerAddress: creator1.Address(),
	})
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	defer c.Shutdown()

	pickup := contract.Coordinate{Lat: 40, Lng: -74}
	delivery := contract.Coordinate{Lat: 40.02, Lng: -74}

	tx1 := newContractCreateTx(t, creator1, 1, pickup, delivery)
	if err := c.SubmitTransaction(tx1, nil); err != nil {
		t.Fatalf("submit first create tx: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.MineNewBlock(ctx); err != nil {
		t.Fatalf("mine first block: %v", err)
	}

	if _, err := c.QueryContract([32]byte{1}); err != nil {
		t.Fatalf("first contract should be persisted: %v", err)
	}

	tx2 := newContractCreateTx(t, creator2, 2, pickup, delivery)
	if err := c.SubmitTransaction(tx2, nil); err != nil {
		t.Fatalf("submit second create tx: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if _, err := c.MineNewBlock(ctx2); !errors.Is(err, coordgrid.ErrCoordinateSaturated) {
		t.Fatalf("expected second block to fail with ErrCoordinateSaturated, got %v", err)
	}
}
