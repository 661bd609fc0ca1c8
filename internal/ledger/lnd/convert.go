package lnd

import (
	"context"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/matheus3301/lnchat/internal/ledger"
)

// macaroonCredential attaches the hex macaroon to every call.
type macaroonCredential string

func (m macaroonCredential) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"macaroon": string(m)}, nil
}

func (macaroonCredential) RequireTransportSecurity() bool { return true }

func convertInvoice(inv *lnrpc.Invoice) ledger.Invoice {
	out := ledger.Invoice{
		AddIndex:     inv.AddIndex,
		IsKeysend:    inv.IsKeysend,
		RPreimage:    inv.RPreimage,
		CreationDate: inv.CreationDate,
		SettleDate:   inv.SettleDate,
		AmtPaidSat:   inv.AmtPaidSat,
		Settled:      inv.State == lnrpc.Invoice_SETTLED,
	}
	for _, h := range inv.Htlcs {
		if h == nil {
			continue
		}
		out.HTLCs = append(out.HTLCs, ledger.InvoiceHTLC{
			State:         convertHTLCState(h.State),
			AmtMsat:       h.AmtMsat,
			CustomRecords: h.CustomRecords,
		})
	}
	return out
}

func convertHTLCState(s lnrpc.InvoiceHTLCState) ledger.HTLCState {
	switch s {
	case lnrpc.InvoiceHTLCState_SETTLED:
		return ledger.HTLCSettled
	case lnrpc.InvoiceHTLCState_CANCELED:
		return ledger.HTLCCanceled
	default:
		return ledger.HTLCAccepted
	}
}

func convertPayment(p *lnrpc.Payment) ledger.Payment {
	out := ledger.Payment{
		PaymentHash:    p.PaymentHash,
		ValueSat:       p.ValueSat,
		FeeSat:         p.FeeSat,
		CreationTimeNs: p.CreationTimeNs,
		Status:         convertPaymentStatus(p.Status),
		FailureReason:  ledger.FailureReason(p.FailureReason.String()),
	}
	for _, a := range p.Htlcs {
		if a == nil {
			continue
		}
		attempt := ledger.HTLCAttempt{Status: convertAttemptStatus(a.Status)}
		if a.Route != nil {
			for _, hop := range a.Route.Hops {
				if hop == nil {
					continue
				}
				attempt.Hops = append(attempt.Hops, ledger.Hop{
					PubKey:        hop.PubKey,
					CustomRecords: hop.CustomRecords,
				})
			}
		}
		out.HTLCs = append(out.HTLCs, attempt)
	}
	return out
}

func convertPaymentStatus(s lnrpc.Payment_PaymentStatus) ledger.PaymentStatus {
	switch s {
	case lnrpc.Payment_SUCCEEDED:
		return ledger.StatusSucceeded
	case lnrpc.Payment_FAILED:
		return ledger.StatusFailed
	case lnrpc.Payment_IN_FLIGHT, lnrpc.Payment_INITIATED:
		return ledger.StatusInFlight
	default:
		return ledger.StatusUnknown
	}
}

func convertAttemptStatus(s lnrpc.HTLCAttempt_HTLCStatus) ledger.AttemptStatus {
	switch s {
	case lnrpc.HTLCAttempt_SUCCEEDED:
		return ledger.AttemptSucceeded
	case lnrpc.HTLCAttempt_FAILED:
		return ledger.AttemptFailed
	default:
		return ledger.AttemptInFlight
	}
}
