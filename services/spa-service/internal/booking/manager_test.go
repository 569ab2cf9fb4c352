package booking

import (
	"testing"
	"time"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

func TestEffectiveDiscount(t *testing.T) {
	cases := []struct {
		name         string
		cost         float64
		discount     float64
		discountType string
		want         float64
		wantErr      bool
	}{
		{name: "none ignores amount", cost: 100, discount: 50, discountType: model.DiscountNone, want: 0},
		{name: "empty type means none", cost: 100, discount: 50, discountType: "", want: 0},
		{name: "flat", cost: 100, discount: 30, discountType: model.DiscountFlat, want: 30},
		{name: "flat capped at cost", cost: 100, discount: 250, discountType: model.DiscountFlat, want: 100},
		{name: "percent", cost: 200, discount: 25, discountType: model.DiscountPercent, want: 50},
		{name: "percent full", cost: 80, discount: 100, discountType: model.DiscountPercent, want: 80},
		{name: "percent above 100 rejected", cost: 80, discount: 150, discountType: model.DiscountPercent, wantErr: true},
		{name: "negative rejected", cost: 100, discount: -1, discountType: model.DiscountFlat, wantErr: true},
		{name: "unknown type rejected", cost: 100, discount: 10, discountType: "bogus", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := effectiveDiscount(tc.cost, tc.discount, tc.discountType)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				if !model.IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("effectiveDiscount: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGuardScheduled(t *testing.T) {
	started := time.Now()
	item := model.TransactionItem{ActualStart: &started}
	err := guardScheduled(&item, "edit")
	if err == nil {
		t.Fatal("expected error for started item")
	}
	if !model.IsInvalidState(err) {
		t.Fatalf("expected invalid state error, got %v", err)
	}

	if err := guardScheduled(&model.TransactionItem{}, "edit"); err != nil {
		t.Fatalf("scheduled item should be editable: %v", err)
	}
}
