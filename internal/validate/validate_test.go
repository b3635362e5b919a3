package validate

import "testing"

type submitContractRequest struct {
	PickupLat   float64 `validate:"latitude"`
	PickupLng   float64 `validate:"longitude"`
	DeliveryLat float64 `validate:"latitude"`
	DeliveryLng float64 `validate:"longitude"`
	CargoType   string  `validate:"required"`
	WeightKg    float64 `validate:"gt=0"`
}

func Test_CheckValidRequestPasses(t *testing.T) {
	val, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := submitContractRequest{
		PickupLat: 40.7, PickupLng: -74.0,
		DeliveryLat: 34.0, DeliveryLng: -118.2,
		CargoType: "perishable", WeightKg: 12.5,
	}
	if err := val.Check(req); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func Test_CheckOutOfRangeLatitudeFails(t *testing.T) {
	val, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := submitContractRequest{
		PickupLat: 95, PickupLng: -74.0,
		DeliveryLat: 34.0, DeliveryLng: -118.2,
		CargoType: "perishable", WeightKg: 12.5,
	}
	err = val.Check(req)
	if err == nil {
		t.Fatalf("expected an error for out-of-range latitude")
	}
	fe, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if len(fe) != 1 || fe[0].Field != "PickupLat" {
		t.Fatalf("unexpected field errors: %+v", fe)
	}
}

func Test_CheckMissingRequiredFieldFails(t *testing.T) {
	val, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := submitContractRequest{
		PickupLat: 40.7, PickupLng: -74.0,
		DeliveryLat: 34.0, DeliveryLng: -118.2,
		WeightKg: 12.5,
	}
	if err := val.Check(req); err == nil {
		t.Fatalf("expected an error for missing CargoType")
	}
}
