package ledger

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestIsLostConnection(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrLostConnection, true},
		{fmt.Errorf("subscribe: %w", ErrLostConnection), true},
		{errors.New("rpc error: lost connection to node"), true},
		{errors.New("permission denied"), false},
	}
	for _, tt := range tests {
		if got := IsLostConnection(tt.err); got != tt.want {
			t.Errorf("IsLostConnection(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestIsStreamClosed(t *testing.T) {
	if !IsStreamClosed(io.EOF) {
		t.Error("io.EOF should be stream closed")
	}
	if !IsStreamClosed(errors.New("EOF")) {
		t.Error("EOF text should be stream closed")
	}
	if IsStreamClosed(errors.New("no route")) {
		t.Error("unexpected stream closed")
	}
}

func TestInvoiceSettledHTLC(t *testing.T) {
	inv := Invoice{HTLCs: []InvoiceHTLC{
		{State: HTLCCanceled},
		{State: HTLCSettled, AmtMsat: 1000},
	}}
	h, ok := inv.SettledHTLC()
	if !ok || h.AmtMsat != 1000 {
		t.Errorf("SettledHTLC = %+v, %v", h, ok)
	}
	if _, ok := (Invoice{}).SettledHTLC(); ok {
		t.Error("empty invoice should have no settled HTLC")
	}
}

func TestPaymentLastHop(t *testing.T) {
	p := Payment{HTLCs: []HTLCAttempt{
		{Status: AttemptFailed, Hops: []Hop{{PubKey: "x"}}},
		{Status: AttemptSucceeded, Hops: []Hop{{PubKey: "a"}, {PubKey: "b"}}},
	}}
	h, ok := p.LastHop()
	if !ok || h.PubKey != "b" {
		t.Errorf("LastHop = %+v, %v", h, ok)
	}
	if _, ok := (Payment{}).LastHop(); ok {
		t.Error("empty payment should have no last hop")
	}
}

func TestSince(t *testing.T) {
	if !Since(0).IsZero() {
		t.Error("Since(0) should be zero")
	}
	if Since(1700000000).Unix() != 1700000000 {
		t.Error("Since round trip")
	}
}
