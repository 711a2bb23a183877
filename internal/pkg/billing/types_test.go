package billing

import (
	"errors"
	"testing"
)

func validEventJSON() []byte {
	return []byte(`{
		"subscription_id": "0b61b7dc-3b6d-4cf1-a2f9-4f1c2d3e4a5b",
		"customer_id": "9a1e2f3d-4c5b-6a7e-8f90-112233445566",
		"plan_id": "7c6d5e4f-3a2b-1c0d-9e8f-665544332211",
		"interval": "month",
		"amount_cents": 999,
		"currency": "EUR"
	}`)
}

func TestParseRenewalEvent(t *testing.T) {
	evt, err := ParseRenewalEvent(validEventJSON())
	if err != nil {
		t.Fatal(err)
	}
	if evt.SubscriptionID != "0b61b7dc-3b6d-4cf1-a2f9-4f1c2d3e4a5b" {
		t.Fatalf("subscription_id = %q", evt.SubscriptionID)
	}
	if evt.AmountCents != 999 || evt.Currency != "EUR" {
		t.Fatalf("amount/currency not parsed: %d %s", evt.AmountCents, evt.Currency)
	}
}

func TestParseRenewalEventRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"subscription_id":`},
		{name: "missing subscription", body: `{"customer_id":"9a1e2f3d-4c5b-6a7e-8f90-112233445566","plan_id":"7c6d5e4f-3a2b-1c0d-9e8f-665544332211","interval":"month","amount_cents":999,"currency":"EUR"}`},
		{name: "bad interval", body: `{"subscription_id":"0b61b7dc-3b6d-4cf1-a2f9-4f1c2d3e4a5b","customer_id":"9a1e2f3d-4c5b-6a7e-8f90-112233445566","plan_id":"7c6d5e4f-3a2b-1c0d-9e8f-665544332211","interval":"weekly","amount_cents":999,"currency":"EUR"}`},
		{name: "zero amount", body: `{"subscription_id":"0b61b7dc-3b6d-4cf1-a2f9-4f1c2d3e4a5b","customer_id":"9a1e2f3d-4c5b-6a7e-8f90-112233445566","plan_id":"7c6d5e4f-3a2b-1c0d-9e8f-665544332211","interval":"month","amount_cents":0,"currency":"EUR"}`},
		{name: "bad currency", body: `{"subscription_id":"0b61b7dc-3b6d-4cf1-a2f9-4f1c2d3e4a5b","customer_id":"9a1e2f3d-4c5b-6a7e-8f90-112233445566","plan_id":"7c6d5e4f-3a2b-1c0d-9e8f-665544332211","interval":"month","amount_cents":999,"currency":"EURO"}`},
		{name: "bad period date", body: `{"subscription_id":"0b61b7dc-3b6d-4cf1-a2f9-4f1c2d3e4a5b","customer_id":"9a1e2f3d-4c5b-6a7e-8f90-112233445566","plan_id":"7c6d5e4f-3a2b-1c0d-9e8f-665544332211","interval":"month","amount_cents":999,"currency":"EUR","period_start":"15.02.2024"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRenewalEvent([]byte(tt.body))
			if !errors.Is(err, ErrInvalidEvent) {
				t.Fatalf("expected ErrInvalidEvent, got %v", err)
			}
		})
	}
}
