package catalog

import "testing"

func TestGetKnownProduct(t *testing.T) {
	p, err := Get("ebook")
	if err != nil {
		t.Fatalf("get ebook: %v", err)
	}
	if p.PriceCents != 1999 {
		t.Errorf("price = %d, want 1999", p.PriceCents)
	}
	if p.Currency != "usd" {
		t.Errorf("currency = %q, want usd", p.Currency)
	}
	if p.Files["epub"] == "" || p.Files["pdf"] == "" {
		t.Error("expected epub and pdf artifacts")
	}
}

func TestGetUnknownProduct(t *testing.T) {
	if _, err := Get("paperback"); err != ErrUnknownProduct {
		t.Errorf("err = %v, want ErrUnknownProduct", err)
	}
}

func TestApplyCoupon(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		percentOff float64
		amountOff  int64
		want       int64
	}{
		{"twenty percent off 19.99", 1999, 20, 0, 1599},
		{"no discount", 1999, 0, 0, 1999},
		{"fixed amount off", 1999, 0, 500, 1499},
		{"fixed amount exceeds price", 1999, 0, 5000, 0},
		{"full percent off", 1999, 100, 0, 0},
		{"half off odd amount", 1499, 50, 0, 749},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyCoupon(tt.amount, tt.percentOff, tt.amountOff)
			if got != tt.want {
				t.Errorf("ApplyCoupon(%d, %v, %d) = %d, want %d",
					tt.amount, tt.percentOff, tt.amountOff, got, tt.want)
			}
		})
	}
}
