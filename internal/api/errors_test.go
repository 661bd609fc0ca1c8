package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/matheus3301/lnchat/internal/chat"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/outbox"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{chat.ErrSelfConversation, codes.InvalidArgument},
		{outbox.ErrTooLong, codes.InvalidArgument},
		{chat.ErrNodeNotFound, codes.NotFound},
		{chat.ErrConversationExists, codes.AlreadyExists},
		{fmt.Errorf("open: %w", crypto.ErrLocked), codes.FailedPrecondition},
		{crypto.ErrUnlocked, codes.FailedPrecondition},
		{crypto.ErrBadPassphrase, codes.PermissionDenied},
		{lnsync.ErrInProgress, codes.Aborted},
		{ledger.ErrLostConnection, codes.Unavailable},
		{errors.New("disk full"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := grpcstatus.Code(toStatus("op", tt.err)); got != tt.want {
				t.Errorf("toStatus(%v) code = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsSendFailure(t *testing.T) {
	if !isSendFailure(fmt.Errorf("x: %w", outbox.ErrSignFailed)) {
		t.Error("sign failure should be reported in the response")
	}
	if isSendFailure(outbox.ErrEmptyMessage) {
		t.Error("validation errors are returned as status errors")
	}
}
