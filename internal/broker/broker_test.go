package broker

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"derivbot/internal/config"
)

func TestIsPriceMoved(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			"price moved rejection",
			&APIError{Code: "ContractBuyValidationError", Message: "The underlying market has moved too much since you priced the contract."},
			true,
		},
		{
			"payout changed rejection",
			&APIError{Code: "PriceMoved", Message: "The payout has changed, please try again."},
			true,
		},
		{
			"wrapped api error",
			fmt.Errorf("open failed: %w", &APIError{Code: "X", Message: "moved too much"}),
			true,
		},
		{
			"other api error",
			&APIError{Code: "InsufficientBalance", Message: "Your balance is insufficient."},
			false,
		},
		{
			"plain error",
			errors.New("connection reset"),
			false,
		},
		{
			"nil error",
			nil,
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPriceMoved(tt.err); got != tt.expected {
				t.Errorf("IsPriceMoved(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestContractStatusTerminal(t *testing.T) {
	tests := []struct {
		name     string
		status   ContractStatus
		expected bool
	}{
		{"open contract", ContractStatus{}, false},
		{"sold", ContractStatus{IsSold: true}, true},
		{"expired", ContractStatus{IsExpired: true}, true},
		{"sold and expired", ContractStatus{IsSold: true, IsExpired: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.Terminal(); got != tt.expected {
				t.Errorf("Terminal() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestParseContractID(t *testing.T) {
	id, err := parseContractID("123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 123456789 {
		t.Errorf("parseContractID = %d, expected 123456789", id)
	}

	if _, err := parseContractID("not-a-number"); err == nil {
		t.Error("expected error for malformed contract id")
	}
	if _, err := parseContractID(""); err == nil {
		t.Error("expected error for empty contract id")
	}
}

func newTestClient() *DerivClient {
	return NewDerivClient(config.BrokerConfig{
		AppID:          "1089",
		APIToken:       "test-token-xyz",
		WSURL:          "wss://example.invalid/websockets/v3",
		ConnectTimeout: time.Second,
		RequestTimeout: time.Second,
		PingInterval:   30 * time.Second,
	}, 1.10)
}

func TestDispatchRoutesByReqID(t *testing.T) {
	c := newTestClient()

	ch := make(chan *responseEnvelope, 1)
	c.pendingMu.Lock()
	c.pending[7] = ch
	c.pendingMu.Unlock()

	c.dispatch([]byte(`{"msg_type":"sell","req_id":7,"sell":{"contract_id":42,"sold_for":10.55}}`))

	select {
	case resp := <-ch:
		if resp.Sell == nil || resp.Sell.ContractID != 42 {
			t.Errorf("unexpected response: %+v", resp)
		}
		if resp.Sell.SoldFor != 10.55 {
			t.Errorf("sold_for = %v, expected 10.55", resp.Sell.SoldFor)
		}
	default:
		t.Fatal("response was not delivered to the pending channel")
	}

	c.pendingMu.Lock()
	_, still := c.pending[7]
	c.pendingMu.Unlock()
	if still {
		t.Error("pending entry should be removed after dispatch")
	}
}

func TestDispatchIgnoresUnmatched(t *testing.T) {
	c := newTestClient()

	// Ответ без ожидающего запроса и пуш без req_id не должны паниковать
	c.dispatch([]byte(`{"msg_type":"sell","req_id":99,"sell":{"contract_id":1}}`))
	c.dispatch([]byte(`{"msg_type":"balance"}`))
	c.dispatch([]byte(`not json at all`))
}

func TestFailPendingClosesChannels(t *testing.T) {
	c := newTestClient()

	ch := make(chan *responseEnvelope, 1)
	c.pendingMu.Lock()
	c.pending[3] = ch
	c.pendingMu.Unlock()

	c.failPending(ErrNotConnected)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel, got a value")
		}
	default:
		t.Fatal("channel was not closed")
	}

	c.pendingMu.Lock()
	remaining := len(c.pending)
	c.pendingMu.Unlock()
	if remaining != 0 {
		t.Errorf("pending map should be empty, has %d entries", remaining)
	}
}

func TestNewDerivClientToleranceFloor(t *testing.T) {
	c := NewDerivClient(config.BrokerConfig{
		WSURL: "wss://example.invalid", AppID: "1",
	}, 0.5)
	if c.priceTolerance != 1 {
		t.Errorf("priceTolerance = %v, expected floor of 1", c.priceTolerance)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Code: "InvalidToken", Message: "The token is invalid."}
	expected := "broker api error [InvalidToken]: The token is invalid."
	if err.Error() != expected {
		t.Errorf("Error() = %q, expected %q", err.Error(), expected)
	}
}
