package contract_test

import (
	"testing"

	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/crypto"
	"github.com/caiorlm/logichain/internal/money"
)

func newTestContract(t *testing.T, creator crypto.Address) *contract.Contract {
	t.Helper()
	pickup := contract.Coordinate{Lat: 40.00, Lng: -74.00}
	delivery := contract.Coordinate{Lat: 40.02, Lng: -74.00} // ~2.2km north, under MaxStepKM
	return contract.NewContract([32]byte{1}, creator, pickup, delivery, 50, 15, contract.CargoManifest{
		CargoType: "produce",
		WeightKg:  500,
	}, money.FromUnits(10), 0, 1000)
}

func mustSign(t *testing.T, driver *crypto.Ed25519Identity, contractID [32]byte, cp contract.Checkpoint) contract.Checkpoint {
	t.Helper()
	signed, err := contract.SignCheckpoint(driver, contractID, cp)
	if err != nil {
		t.Fatalf("Should sign checkpoint: %s", err)
	}
	return signed
}

func Test_AcceptRequiresReputationThreshold(t *testing.T) {
	creator, _ := crypto.GenerateECDSAIdentity()
	driver, _ := crypto.GenerateEd25519Identity()
	c := newTestContract(t, creator.Address())
	cfg := contract.DefaultConfig()

	if err := contract.Accept(c, driver.Address(), 0.05, cfg); err != contract.ErrDriverReputationLow {
		t.Fatalf("got %v, exp ErrDriverReputationLow", err)
	}

	if err := contract.Accept(c, driver.Address(), 0.5, cfg); err != nil {
		t.Fatalf("Should accept with sufficient reputation: %s", err)
	}
	if c.State != contract.StateAccepted {
		t.Fatalf("got state %s, exp ACCEPTED", c.State)
	}
}

func Test_FirstCheckpointMustReachPickup(t *testing.T) {
	creator, _ := crypto.GenerateECDSAIdentity()
	driver, _ := crypto.GenerateEd25519Identity()
	c := newTestContract(t, creator.Address())
	cfg := contract.DefaultConfig()

	if err := contract.Accept(c, driver.Address(), 0.5, cfg); err != nil {
		t.Fatalf("Should accept: %s", err)
	}

	farAway := contract.Checkpoint{
		Seq:            1,
		Timestamp:      10,
		Coord:          contract.Coordinate{Lat: 41.0, Lng: -74.0},
		AccuracyMeters: 5,
	}
	farAway = mustSign(t, driver, c.ID, farAway)

	if err := contract.ApplyCheckpoint(c, farAway, driver.PublicKeyBytes(), 10, cfg); err != contract.ErrCheckpointOutsideEnvelope {
		t.Fatalf("got %v, exp ErrCheckpointOutsideEnvelope", err)
	}
	if c.State != contract.StateAccepted {
		t.Fatalf("state should not advance on rejected checkpoint, got %s", c.State)
	}

	atPickup := contract.Checkpoint{
		Seq:            1,
		Timestamp:      10,
		Coord:          c.Pickup,
		AccuracyMeters: 5,
	}
	atPickup = mustSign(t, driver, c.ID, atPickup)

	if err := contract.ApplyCheckpoint(c, atPickup, driver.PublicKeyBytes(), 10, cfg); err != nil {
		t.Fatalf("Should accept checkpoint at pickup: %s", err)
	}
	if c.State != contract.StateInTransit {
		t.Fatalf("got state %s, exp IN_TRANSIT", c.State)
	}
}

func Test_CheckpointChainRejectsTamperedPrevHash(t *testing.T) {
	creator, _ := crypto.GenerateECDSAIdentity()
	driver, _ := crypto.GenerateEd25519Identity()
	c := newTestContract(t, creator.Address())
	cfg := contract.DefaultConfig()
	_ = contract.Accept(c, driver.Address(), 0.5, cfg)

	cp1 := mustSign(t, driver, c.ID, contract.Checkpoint{Seq: 1, Timestamp: 10, Coord: c.Pickup, AccuracyMeters: 5})
	if err := contract.ApplyCheckpoint(c, cp1, driver.PublicKeyBytes(), 10, cfg); err != nil {
		t.Fatalf("Should accept first checkpoint: %s", err)
	}

	badPrev := contract.Checkpoint{
		Seq:                2,
		Timestamp:          20,
		Coord:              contract.Coordinate{Lat: 40.005, Lng: -74.0},
		AccuracyMeters:     5,
		PrevCheckpointHash: [32]byte{0xff}, // wrong on purpose
	}
	badPrev = mustSign(t, driver, c.ID, badPrev)

	if err := contract.ApplyCheckpoint(c, badPrev, driver.PublicKeyBytes(), 20, cfg); err != contract.ErrCheckpointPrevHashMismatch {
		t.Fatalf("got %v, exp ErrCheckpointPrevHashMismatch", err)
	}
}

func Test_DeliveryTransitionAndValidate(t *testing.T) {
	creator, _ := crypto.GenerateECDSAIdentity()
	driver, _ := crypto.GenerateEd25519Identity()
	v1, _ := crypto.GenerateEd25519Identity()
	v2, _ := crypto.GenerateEd25519Identity()
	c := newTestContract(t, creator.Address())
	cfg := contract.DefaultConfig()
	_ = contract.Accept(c, driver.Address(), 0.5, cfg)

	cp1 := mustSign(t, driver, c.ID, contract.Checkpoint{Seq: 1, Timestamp: 10, Coord: c.Pickup, AccuracyMeters: 5})
	if err := contract.ApplyCheckpoint(c, cp1, driver.PublicKeyBytes(), 10, cfg); err != nil {
		t.Fatalf("Should accept pickup checkpoint: %s", err)
	}

	prevHash := cp1.Hash(c.ID)
	cp2 := mustSign(t, driver, c.ID, contract.Checkpoint{
		Seq:                2,
		Timestamp:          20,
		Coord:              c.Delivery,
		AccuracyMeters:     5,
		PrevCheckpointHash: prevHash,
	})
	if err := contract.ApplyCheckpoint(c, cp2, driver.PublicKeyBytes(), 20, cfg); err != nil {
		t.Fatalf("Should accept delivery checkpoint: %s", err)
	}
	if c.State != contract.StateDelivered {
		t.Fatalf("got state %s, exp DELIVERED", c.State)
	}

	validators := []crypto.Address{v1.Address(), v2.Address()}
	payouts, err := contract.Validate(c, []crypto.Signature{{}, {}}, 2, money.FromUnits(100), validators, cfg)
	if err != nil {
		t.Fatalf("Should validate with sufficient attestations: %s", err)
	}
	if c.State != contract.StateValidated {
		t.Fatalf("got state %s, exp VALIDATED", c.State)
	}
	if payouts.Driver.To != driver.Address() {
		t.Fatalf("driver payout should go to the driver address")
	}
	if len(payouts.Pool) != 2 {
		t.Fatalf("got %d validator payouts, exp 2", len(payouts.Pool))
	}
}

func Test_FinalAccuracyExceedsMaxErrorRejected(t *testing.T) {
	creator, _ := crypto.GenerateECDSAIdentity()
	driver, _ := crypto.GenerateEd25519Identity()
	c := newTestContract(t, creator.Address())
	cfg := contract.DefaultConfig()
	_ = contract.Accept(c, driver.Address(), 0.5, cfg)

	cp1 := mustSign(t, driver, c.ID, contract.Checkpoint{Seq: 1, Timestamp: 10, Coord: c.Pickup, AccuracyMeters: 5})
	_ = contract.ApplyCheckpoint(c, cp1, driver.PublicKeyBytes(), 10, cfg)

	// Tighten max_error below the accuracy the final checkpoint will report,
	// while staying under GPS_ACCURACY_LIMIT (10m) so the generic accuracy
	// rule doesn't fire first.
	c.MaxErrorMeters = 5

	prevHash := cp1.Hash(c.ID)
	badFinal := mustSign(t, driver, c.ID, contract.Checkpoint{
		Seq:                2,
		Timestamp:          20,
		Coord:              c.Delivery,
		AccuracyMeters:     9,
		PrevCheckpointHash: prevHash,
	})

	if err := contract.ApplyCheckpoint(c, badFinal, driver.PublicKeyBytes(), 20, cfg); err != contract.ErrFinalAccuracyExceedsMax {
		t.Fatalf("got %v, exp ErrFinalAccuracyExceedsMax", err)
	}
	if c.State != contract.StateInTransit {
		t.Fatalf("state should remain IN_TRANSIT on rejected delivery, got %s", c.State)
	}
}

func Test_ExpireOnlyAfterExpiration(t *testing.T) {
	creator, _ := crypto.GenerateECDSAIdentity()
	c := newTestContract(t, creator.Address())

	if err := contract.Expire(c, 500); err != nil {
		t.Fatalf("Should not error before expiration: %s", err)
	}
	if c.State != contract.StateOpen {
		t.Fatalf("should not expire before expiration time, got %s", c.State)
	}

	if err := contract.Expire(c, 1001); err != nil {
		t.Fatalf("Should expire past expiration: %s", err)
	}
	if c.State != contract.StateExpired {
		t.Fatalf("got state %s, exp EXPIRED", c.State)
	}

	if err := contract.Expire(c, 2000); err != contract.ErrAlreadyTerminal {
		t.Fatalf("got %v, exp ErrAlreadyTerminal", err)
	}
}

func Test_DisputeFreezesRegardlessOfState(t *testing.T) {
	creator, _ := crypto.GenerateECDSAIdentity()
	c := newTestContract(t, creator.Address())

	if err := contract.Dispute(c, "cargo temperature excursion reported"); err != nil {
		t.Fatalf("Should dispute: %s", err)
	}
	if c.State != contract.StateDisputed {
		t.Fatalf("got state %s, exp DISPUTED", c.State)
	}
	if c.DisputeReason == "" {
		t.Fatalf("dispute reason should be recorded")
	}

	if err := contract.Dispute(c, "second dispute"); err != contract.ErrAlreadyTerminal {
		t.Fatalf("got %v, exp ErrAlreadyTerminal", err)
	}
}
