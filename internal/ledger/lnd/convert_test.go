package lnd

import (
	"context"
	"errors"
	"testing"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/matheus3301/lnchat/internal/ledger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestConvertInvoice(t *testing.T) {
	inv := convertInvoice(&lnrpc.Invoice{
		IsKeysend:    true,
		CreationDate: 1700000000,
		AmtPaidSat:   10,
		State:        lnrpc.Invoice_SETTLED,
		Htlcs: []*lnrpc.InvoiceHTLC{
			nil,
			{State: lnrpc.InvoiceHTLCState_CANCELED},
			{State: lnrpc.InvoiceHTLCState_SETTLED, CustomRecords: map[uint64][]byte{1: []byte("x")}},
		},
	})
	if !inv.IsKeysend || !inv.Settled || inv.AmtPaidSat != 10 || inv.CreationDate != 1700000000 {
		t.Errorf("convertInvoice = %+v", inv)
	}
	if len(inv.HTLCs) != 2 {
		t.Fatalf("len(HTLCs) = %d, want 2", len(inv.HTLCs))
	}
	h, ok := inv.SettledHTLC()
	if !ok || string(h.CustomRecords[1]) != "x" {
		t.Errorf("SettledHTLC = %+v, %v", h, ok)
	}
}

func TestConvertPayment(t *testing.T) {
	p := convertPayment(&lnrpc.Payment{
		ValueSat:      5,
		FeeSat:        1,
		Status:        lnrpc.Payment_SUCCEEDED,
		FailureReason: lnrpc.PaymentFailureReason_FAILURE_REASON_NONE,
		Htlcs: []*lnrpc.HTLCAttempt{{
			Status: lnrpc.HTLCAttempt_SUCCEEDED,
			Route: &lnrpc.Route{Hops: []*lnrpc.Hop{
				{PubKey: "hop1"},
				{PubKey: "dest", CustomRecords: map[uint64][]byte{2: []byte("y")}},
			}},
		}},
	})
	if p.Status != ledger.StatusSucceeded || p.FailureReason != ledger.FailureNone {
		t.Errorf("status = %s / %s", p.Status, p.FailureReason)
	}
	hop, ok := p.LastHop()
	if !ok || hop.PubKey != "dest" || string(hop.CustomRecords[2]) != "y" {
		t.Errorf("LastHop = %+v, %v", hop, ok)
	}
}

func TestConvertPaymentStatus(t *testing.T) {
	tests := map[lnrpc.Payment_PaymentStatus]ledger.PaymentStatus{
		lnrpc.Payment_IN_FLIGHT: ledger.StatusInFlight,
		lnrpc.Payment_INITIATED: ledger.StatusInFlight,
		lnrpc.Payment_FAILED:    ledger.StatusFailed,
		lnrpc.Payment_SUCCEEDED: ledger.StatusSucceeded,
	}
	for in, want := range tests {
		if got := convertPaymentStatus(in); got != want {
			t.Errorf("convertPaymentStatus(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestMapErr(t *testing.T) {
	err := mapErr(status.Error(codes.Unavailable, "transport is closing"))
	if !ledger.IsLostConnection(err) {
		t.Errorf("expected lost connection, got %v", err)
	}
	other := errors.New("boom")
	if mapErr(other) != other {
		t.Error("non-grpc errors should pass through")
	}
}

func TestMacaroonCredential(t *testing.T) {
	md, err := macaroonCredential("abcd").GetRequestMetadata(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if md["macaroon"] != "abcd" {
		t.Errorf("metadata = %v", md)
	}
	if !macaroonCredential("").RequireTransportSecurity() {
		t.Error("macaroon must require transport security")
	}
}
