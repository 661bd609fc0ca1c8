package sync

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/ledger/ledgertest"
	"github.com/matheus3301/lnchat/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	selfKey = "02self"
	peerKey = "abc123"
)

var testNow = time.Unix(1_700_000_000, 0)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testVault(t *testing.T) *crypto.Vault {
	t.Helper()
	v := crypto.NewVault()
	require.NoError(t, v.Unlock("correct horse", []byte("0123456789abcdef")))
	return v
}

type fixture struct {
	db    *store.DB
	node  *ledgertest.Fake
	vault *crypto.Vault
	bus   *bus.Bus
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	node := ledgertest.New(selfKey)
	node.Nodes[peerKey] = ledger.NodeInfo{Alias: "alice", Color: "#3399ff"}
	return &fixture{
		db:    testDB(t),
		node:  node,
		vault: testVault(t),
		bus:   bus.New(),
		now:   testNow,
	}
}

func (f *fixture) engine(presence ActiveChecker) *Engine {
	return NewEngine(f.db, f.node, f.vault, f.bus, presence, Options{
		LookbackDays: 30,
		Now:          func() time.Time { return f.now },
	}, nil)
}

func preimage(b byte) []byte {
	p := make([]byte, 32)
	for i := range p {
		p[i] = b
	}
	return p
}

func idOf(p []byte) string {
	return base64.StdEncoding.EncodeToString(p)
}

func (f *fixture) inbound(b byte, content string, created time.Time) ledger.Invoice {
	return f.node.SignedInvoice(ledgertest.MessageSpec{
		Sender:       peerKey,
		Content:      content,
		Timestamp:    created.UnixNano(),
		CreationDate: created.Unix(),
		Preimage:     preimage(b),
	})
}

type activeSet map[string]bool

func (a activeSet) IsActive(pubkey string) bool { return a[pubkey] }

func TestColdSync(t *testing.T) {
	f := newFixture(t)
	f.node.Invoices = append(f.node.Invoices, f.inbound(1, "hi", f.now.Add(-time.Hour)))

	ch, unsub := f.bus.Subscribe("sync.", 10)
	defer unsub()

	summary, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeCold, summary.Mode)
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Valid)

	conv, err := f.db.GetConversation(peerKey)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, "alice", conv.Alias)
	assert.Equal(t, "#3399ff", conv.Color)
	assert.Equal(t, 1, conv.UnreadCount)
	assert.Equal(t, idOf(preimage(1)), conv.LatestMessageID)
	assert.Equal(t, ledger.StatusSucceeded, conv.LatestMessageStatus)

	msg, err := f.db.GetMessage(idOf(preimage(1)))
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.False(t, msg.Self)
	assert.Equal(t, int64(1), msg.Amount)
	assert.Equal(t, store.TypeText, msg.Type)
	body, err := f.vault.Decrypt(msg.IV, msg.Ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(body))

	cursor, err := NewReconciler(f.db, nil).Cursor()
	require.NoError(t, err)
	assert.Equal(t, f.now.Unix(), cursor)
	done, err := NewReconciler(f.db, nil).FirstSyncComplete()
	require.NoError(t, err)
	assert.True(t, done)

	kinds := drain(ch)
	assert.Equal(t, []string{bus.KindSyncStarted, bus.KindSyncCompleted}, kinds)
}

func TestColdSyncHonorsLookback(t *testing.T) {
	f := newFixture(t)
	f.node.Invoices = append(f.node.Invoices,
		f.inbound(1, "ancient", f.now.AddDate(0, 0, -45)),
		f.inbound(2, "recent", f.now.Add(-time.Minute)),
	)

	summary, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Invoices)

	n, err := f.db.CountMessages(peerKey)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWarmSyncAddsUnread(t *testing.T) {
	f := newFixture(t)
	f.node.Invoices = append(f.node.Invoices,
		f.inbound(1, "one", f.now.Add(-2*time.Hour)),
		f.inbound(2, "two", f.now.Add(-time.Hour)),
	)
	e := f.engine(nil)
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	coldTime := f.now
	f.now = f.now.Add(10 * time.Minute)
	f.node.Invoices = append(f.node.Invoices, f.inbound(3, "three", coldTime.Add(time.Minute)))

	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeWarm, summary.Mode)
	assert.Equal(t, 1, summary.Invoices, "warm fetch is bounded by the cursor")

	conv, err := f.db.GetConversation(peerKey)
	require.NoError(t, err)
	assert.Equal(t, 3, conv.UnreadCount)
	assert.Equal(t, idOf(preimage(3)), conv.LatestMessageID)

	n, err := f.db.CountMessages(peerKey)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cursor, err := e.Reconciler().Cursor()
	require.NoError(t, err)
	assert.Equal(t, f.now.Unix(), cursor)
}

func TestWarmSyncToleratesDuplicates(t *testing.T) {
	f := newFixture(t)
	inv := f.inbound(1, "once", f.now)
	f.node.Invoices = append(f.node.Invoices, inv)
	e := f.engine(nil)
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	// The invoice sits exactly on the cursor, so the warm fetch sees it again.
	summary, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 0, summary.Inserted)

	conv, err := f.db.GetConversation(peerKey)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestCursorNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	e := f.engine(nil)
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	future := f.now.Add(time.Hour).Unix()
	require.NoError(t, e.Reconciler().AdvanceCursor(future))

	_, err = e.Run(context.Background())
	require.NoError(t, err)

	cursor, err := e.Reconciler().Cursor()
	require.NoError(t, err)
	assert.Equal(t, future, cursor)
}

func TestAnonymousBucket(t *testing.T) {
	f := newFixture(t)
	f.node.Invoices = append(f.node.Invoices, f.node.UnsignedInvoice(ledgertest.MessageSpec{
		Sender:       peerKey,
		Content:      "who am i",
		CreationDate: f.now.Add(-time.Minute).Unix(),
		Preimage:     preimage(7),
	}))

	summary, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Anonymous)

	anon, err := f.db.GetConversation(store.AnonPubkey)
	require.NoError(t, err)
	require.NotNil(t, anon)
	assert.Equal(t, 1, anon.UnreadCount)
	assert.Empty(t, anon.Alias)

	peer, err := f.db.GetConversation(peerKey)
	require.NoError(t, err)
	assert.Nil(t, peer)
	assert.NotContains(t, f.node.Lookups, store.AnonPubkey)
}

func TestPaymentsMergeIntoConversation(t *testing.T) {
	f := newFixture(t)
	f.node.Invoices = append(f.node.Invoices, f.inbound(1, "ping", f.now.Add(-2*time.Hour)))
	f.node.Payments = append(f.node.Payments, f.node.SentPayment(ledgertest.MessageSpec{
		Recipient:    peerKey,
		Content:      "pong",
		CreationDate: f.now.Add(-time.Hour).Unix(),
		Preimage:     preimage(2),
	}))

	_, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)

	conv, err := f.db.GetConversation(peerKey)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.UnreadCount, "outbound messages are never unread")
	assert.Equal(t, idOf(preimage(2)), conv.LatestMessageID)

	msgs, err := f.db.ListMessages(peerKey, 0, "", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].Self)
	require.NotNil(t, msgs[0].Fee)
	assert.Equal(t, int64(0), *msgs[0].Fee)
	assert.False(t, msgs[1].Self)
}

func TestActiveConversationStaysRead(t *testing.T) {
	f := newFixture(t)
	f.node.Invoices = append(f.node.Invoices, f.inbound(1, "seen", f.now.Add(-time.Minute)))

	_, err := f.engine(activeSet{peerKey: true}).Run(context.Background())
	require.NoError(t, err)

	conv, err := f.db.GetConversation(peerKey)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount)
}

func TestLookupFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.node.LookupErr = errors.New("graph unavailable")
	f.node.Invoices = append(f.node.Invoices, f.inbound(1, "hi", f.now.Add(-time.Minute)))

	_, err := f.engine(nil).Run(context.Background())
	require.NoError(t, err)

	conv, err := f.db.GetConversation(peerKey)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Empty(t, conv.Alias)
}

func TestColdSyncFailureClearsConversations(t *testing.T) {
	f := newFixture(t)
	_, err := f.db.InsertConversation(store.NewConversation("stale"))
	require.NoError(t, err)
	_, err = f.db.Exec(`DROP TABLE messages`)
	require.NoError(t, err)
	f.node.Invoices = append(f.node.Invoices, f.inbound(1, "hi", f.now.Add(-time.Minute)))

	_, err = f.engine(nil).Run(context.Background())
	require.ErrorIs(t, err, ErrFirstSync)

	convs, err := f.db.ListConversations(store.ConversationFilter{IncludeAnon: true}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, convs)

	done, err := NewReconciler(f.db, nil).FirstSyncComplete()
	require.NoError(t, err)
	assert.False(t, done, "next run must retry cold")
}

func TestFetchFailureLeavesCursor(t *testing.T) {
	f := newFixture(t)
	f.node.ListErr = ledger.ErrLostConnection

	_, err := f.engine(nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, ledger.IsLostConnection(err))

	cursor, err := NewReconciler(f.db, nil).Cursor()
	require.NoError(t, err)
	assert.Zero(t, cursor)
}

func TestLockedVaultAbortsSync(t *testing.T) {
	f := newFixture(t)
	f.vault.Lock()
	f.node.Invoices = append(f.node.Invoices, f.inbound(1, "hi", f.now.Add(-time.Minute)))

	_, err := f.engine(nil).Run(context.Background())
	require.ErrorIs(t, err, crypto.ErrLocked)
}

func TestRepairIsIdempotent(t *testing.T) {
	f := newFixture(t)
	_, err := f.db.InsertConversation(&store.Conversation{
		Pubkey:              peerKey,
		Blocked:             store.BlockedFalse,
		CharLimit:           store.DefaultCharLimit,
		LatestMessageID:     "m1",
		LatestMessageStatus: ledger.StatusInFlight,
		LastUpdateTime:      1,
	})
	require.NoError(t, err)
	_, err = f.db.InsertMessage(&store.Message{
		ID: "m1", Pubkey: peerKey, Type: store.TypeText,
		ReceivedTimestamp: 1, Status: ledger.StatusInFlight, Self: true,
	})
	require.NoError(t, err)

	e := f.engine(nil)
	res, err := e.Repair()
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Messages)
	assert.Equal(t, int64(1), res.Conversations)

	res, err = e.Repair()
	require.NoError(t, err)
	assert.Zero(t, res.Messages)
	assert.Zero(t, res.Conversations)

	msg, err := f.db.GetMessage("m1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusUnknown, msg.Status)
}

func drain(ch <-chan bus.Event) []string {
	var kinds []string
	for {
		select {
		case evt := <-ch:
			kinds = append(kinds, evt.Kind)
		case <-time.After(100 * time.Millisecond):
			return kinds
		}
	}
}
