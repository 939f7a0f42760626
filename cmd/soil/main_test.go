package main

import (
	"testing"

	"soil/internal/game"
)

func testParcels(n int) []game.Parcel {
	out := make([]game.Parcel, n)
	for i := range out {
		out[i] = game.Parcel{Number: i + 1, Current: game.Fallow}
	}
	return out
}

func TestApplyPlantations(t *testing.T) {
	field := testParcels(6)
	d := game.DefaultDecisions(field)
	if err := applyPlantations(&d, field, "wheat", []string{"2-4=potato", "6=field_bean"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := map[int]game.Plantation{1: game.Wheat, 2: game.Potato, 3: game.Potato, 4: game.Potato, 5: game.Wheat, 6: game.FieldBean}
	for n, p := range want {
		if d.Plantations[n] != p {
			t.Fatalf("parcel %d got=%s want=%s", n, d.Plantations[n], p)
		}
	}
	if err := game.ValidateDecisions(game.DefaultRules(), d, field); err != nil {
		t.Fatalf("result should validate: %v", err)
	}
}

func TestApplyPlantationsRejectsBadInput(t *testing.T) {
	field := testParcels(4)
	bad := [][]string{
		{"3"},
		{"3=tulips"},
		{"3="},
		{"9=wheat"},
		{"4-2=wheat"},
		{"x=wheat"},
	}
	for _, in := range bad {
		d := game.DefaultDecisions(field)
		if err := applyPlantations(&d, field, "", in); err == nil {
			t.Fatalf("assignments %v should fail", in)
		}
	}
	d := game.DefaultDecisions(field)
	if err := applyPlantations(&d, field, "tulips", nil); err == nil {
		t.Fatal("unknown --all plantation should fail")
	}
}
