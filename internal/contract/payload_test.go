package contract_test

import (
	"testing"

	"github.com/caiorlm/logichain/internal/contract"
	"github.com/caiorlm/logichain/internal/money"
)

func Test_CreatePayloadRoundTrip(t *testing.T) {
	p := contract.CreatePayload{
		ContractID:            [32]byte{9},
		Pickup:                contract.Coordinate{Lat: 1, Lng: 2},
		Delivery:              contract.Coordinate{Lat: 3, Lng: 4},
		ToleranceRadiusMeters: 50,
		MaxErrorMeters:        10,
		Cargo:                 contract.CargoManifest{CargoType: "produce", WeightKg: 12},
		Escrow:                money.FromUnits(5),
		ExpiresAt:             1000,
	}

	b, err := contract.EncodeCreate(p)
	if err != nil {
		t.Fatalf("EncodeCreate: %v", err)
	}

	got, err := contract.DecodeCreate(b)
	if err != nil {
		t.Fatalf("DecodeCreate: %v", err)
	}
	if got.ContractID != p.ContractID || got.Escrow.Cmp(p.Escrow) != 0 {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func Test_FinalizePayloadRoundTrip(t *testing.T) {
	p := contract.FinalizePayload{
		ContractID: [32]byte{1},
		Action:     contract.FinalizeDispute,
		DisputeReason: "cargo damaged",
	}

	b, err := contract.EncodeFinalize(p)
	if err != nil {
		t.Fatalf("EncodeFinalize: %v", err)
	}

	got, err := contract.DecodeFinalize(b)
	if err != nil {
		t.Fatalf("DecodeFinalize: %v", err)
	}
	if got.Action != contract.FinalizeDispute || got.DisputeReason != p.DisputeReason {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func Test_DecodeCheckpointRejectsGarbage(t *testing.T) {
	if _, err := contract.DecodeCheckpoint([]byte("not json")); err != contract.ErrUnknownPayload {
		t.Fatalf("got %v, exp ErrUnknownPayload", err)
	}
}
