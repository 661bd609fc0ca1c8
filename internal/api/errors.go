package api

import (
	"errors"

	"github.com/matheus3301/lnchat/internal/chat"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/outbox"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps domain errors onto gRPC codes.
func toStatus(op string, err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, chat.ErrSelfConversation),
		errors.Is(err, chat.ErrInvalidPubkey),
		errors.Is(err, outbox.ErrSelfRecipient),
		errors.Is(err, outbox.ErrInvalidRecipient),
		errors.Is(err, outbox.ErrEmptyMessage),
		errors.Is(err, outbox.ErrTooLong):
		code = codes.InvalidArgument
	case errors.Is(err, chat.ErrNodeNotFound),
		errors.Is(err, chat.ErrConversationNotFound):
		code = codes.NotFound
	case errors.Is(err, chat.ErrConversationExists):
		code = codes.AlreadyExists
	case errors.Is(err, crypto.ErrLocked),
		errors.Is(err, crypto.ErrUnlocked):
		code = codes.FailedPrecondition
	case errors.Is(err, crypto.ErrBadPassphrase):
		code = codes.PermissionDenied
	case errors.Is(err, lnsync.ErrInProgress):
		code = codes.Aborted
	case ledger.IsLostConnection(err):
		code = codes.Unavailable
	}
	return grpcstatus.Errorf(code, "%s: %v", op, err)
}
