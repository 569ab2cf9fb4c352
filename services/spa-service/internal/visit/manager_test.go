package visit

import (
	"testing"
	"time"

	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

func TestShouldComplete(t *testing.T) {
	exited := time.Now()
	cases := []struct {
		name string
		txn  model.Transaction
		want bool
	}{
		{
			name: "paid in full and exited",
			txn:  model.Transaction{TotalCost: 100, TotalPaid: 100, ExitTime: &exited},
			want: true,
		},
		{
			name: "paid in full but still on premises",
			txn:  model.Transaction{TotalCost: 100, TotalPaid: 100},
			want: false,
		},
		{
			name: "exited with balance outstanding",
			txn:  model.Transaction{TotalCost: 100, TotalPaid: 60, ExitTime: &exited},
			want: false,
		},
		{
			name: "discount settles the balance",
			txn:  model.Transaction{TotalCost: 100, TotalDiscount: 40, TotalPaid: 60, ExitTime: &exited},
			want: true,
		},
		{
			name: "overpaid and exited",
			txn:  model.Transaction{TotalCost: 100, TotalPaid: 120, ExitTime: &exited},
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := shouldComplete(&tc.txn); got != tc.want {
				t.Fatalf("shouldComplete = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOutstandingNeverNegative(t *testing.T) {
	txn := model.Transaction{TotalCost: 100, TotalPaid: 150}
	if got := txn.Outstanding(); got != 0 {
		t.Fatalf("outstanding = %v, want 0", got)
	}
}

func TestValidMethod(t *testing.T) {
	for _, method := range []string{model.PayCash, model.PayCard, model.PayQR, model.PayVoucher} {
		if !validMethod(method) {
			t.Fatalf("method %q should be valid", method)
		}
	}
	if validMethod("cheque") {
		t.Fatal("unknown method accepted")
	}
}
