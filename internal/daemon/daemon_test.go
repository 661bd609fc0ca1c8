package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/lnchat/internal/api"
	"github.com/matheus3301/lnchat/internal/bus"
	"github.com/matheus3301/lnchat/internal/chat"
	"github.com/matheus3301/lnchat/internal/config"
	"github.com/matheus3301/lnchat/internal/crypto"
	"github.com/matheus3301/lnchat/internal/ledger"
	"github.com/matheus3301/lnchat/internal/ledger/ledgertest"
	"github.com/matheus3301/lnchat/internal/live"
	"github.com/matheus3301/lnchat/internal/lock"
	"github.com/matheus3301/lnchat/internal/outbox"
	"github.com/matheus3301/lnchat/internal/presence"
	"github.com/matheus3301/lnchat/internal/profile"
	"github.com/matheus3301/lnchat/internal/status"
	"github.com/matheus3301/lnchat/internal/store"
	lnsync "github.com/matheus3301/lnchat/internal/sync"
	"github.com/matheus3301/lnchat/internal/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
)

// shortTempDir keeps socket paths under the 104-char Unix socket limit on
// macOS.
func shortTempDir(t *testing.T, pattern string) string {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", pattern)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return dir
}

func dial(t *testing.T, socketPath string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestDaemonLifecycle(t *testing.T) {
	tmpDir := shortTempDir(t, "lnchat-test-*")
	profileName := "test"
	profileDir := filepath.Join(tmpDir, profileName)
	socketPath := filepath.Join(profileDir, "d.sock")
	if err := os.MkdirAll(profileDir, 0700); err != nil {
		t.Fatal(err)
	}

	lk, err := lock.Acquire(profileDir)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lk.Release() }()

	db, err := store.Open(filepath.Join(profileDir, "lnchat.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	logger := zap.NewNop()
	node := ledgertest.New(selfKey)
	node.Nodes[peerKey] = ledger.NodeInfo{Alias: "bob", Color: "#ff0000"}
	node.SendResult = &ledger.Payment{Status: ledger.StatusSucceeded, FailureReason: ledger.FailureNone}

	vault := crypto.NewVault()
	if err := vault.Unlock("hunter2", []byte("0123456789abcdef")); err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	machine := status.NewMachine(b)
	tracker := presence.NewTracker(b)
	engine := lnsync.NewEngine(db, node, vault, b, tracker, lnsync.Options{}, logger)
	runner := lnsync.NewRunner(engine, machine, logger)
	listener := live.NewListener(db, node, vault, tracker, machine, b, live.Options{}, logger)
	ctrl := NewController(db, vault, node, machine, runner, listener, logger)
	chatSvc := chat.NewService(db, node, vault, tracker, b, chat.Options{}, logger)
	sender := outbox.NewSender(db, node, vault, b, outbox.Options{}, logger)

	grpcSrv := grpc.NewServer()
	wire.RegisterSessionServiceServer(grpcSrv, api.NewSessionService(profileName, ctrl, machine, db, node, vault, b, logger))
	wire.RegisterSyncServiceServer(grpcSrv, api.NewSyncService(runner, machine))
	wire.RegisterChatServiceServer(grpcSrv, api.NewChatService(chatSvc))
	wire.RegisterMessageServiceServer(grpcSrv, api.NewMessageService(chatSvc, sender))

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = grpcSrv.Serve(ln) }()
	defer grpcSrv.GracefulStop()

	conn := dial(t, socketPath)
	ctx := context.Background()

	sessionClient := wire.NewSessionServiceClient(conn)
	resp, err := sessionClient.GetStatus(ctx, &wire.GetStatusRequest{})
	if err != nil {
		t.Fatalf("GetStatus error = %v", err)
	}
	if resp.Profile != profileName {
		t.Errorf("profile = %q, want %q", resp.Profile, profileName)
	}
	if resp.Status != string(status.Booting) {
		t.Errorf("status = %s, want BOOTING", resp.Status)
	}
	if resp.Locked || resp.Pubkey != selfKey {
		t.Errorf("locked = %v, pubkey = %q", resp.Locked, resp.Pubkey)
	}

	// A sync pass is refused until the node is connected.
	syncClient := wire.NewSyncServiceClient(conn)
	if _, err := syncClient.StartSync(ctx, &wire.StartSyncRequest{}); err == nil {
		t.Error("StartSync while BOOTING should fail")
	}
	_ = machine.Transition(status.Connecting)

	node.Invoices = append(node.Invoices, node.SignedInvoice(ledgertest.MessageSpec{Sender: peerKey, Content: "hello"}))
	syncResp, err := syncClient.StartSync(ctx, &wire.StartSyncRequest{})
	if err != nil {
		t.Fatalf("StartSync error = %v", err)
	}
	if syncResp.Mode != string(lnsync.ModeCold) || syncResp.Inserted != 1 {
		t.Errorf("StartSync = %+v, want cold pass with 1 insert", syncResp)
	}
	syncStatus, err := syncClient.GetSyncStatus(ctx, &wire.GetSyncStatusRequest{})
	if err != nil {
		t.Fatalf("GetSyncStatus error = %v", err)
	}
	if syncStatus.Syncing || !syncStatus.FirstSyncComplete || syncStatus.Cursor == 0 {
		t.Errorf("GetSyncStatus = %+v", syncStatus)
	}

	chatClient := wire.NewChatServiceClient(conn)
	list, err := chatClient.ListConversations(ctx, &wire.ListConversationsRequest{})
	if err != nil {
		t.Fatalf("ListConversations error = %v", err)
	}
	if len(list.Conversations) != 1 || list.Conversations[0].Alias != "bob" || list.Conversations[0].UnreadCount != 1 {
		t.Fatalf("conversations = %+v", list.Conversations)
	}

	if _, err := chatClient.AddConversation(ctx, &wire.AddConversationRequest{Pubkey: peerKey}); grpcstatus.Code(err) != codes.AlreadyExists {
		t.Errorf("AddConversation(existing) code = %v, want AlreadyExists", grpcstatus.Code(err))
	}
	if _, err := chatClient.AddConversation(ctx, &wire.AddConversationRequest{Pubkey: selfKey}); grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("AddConversation(self) code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
	if _, err := chatClient.Acknowledge(ctx, &wire.AcknowledgeRequest{Pubkey: peerKey}); err != nil {
		t.Fatalf("Acknowledge error = %v", err)
	}
	conv, err := chatClient.GetConversation(ctx, &wire.GetConversationRequest{Pubkey: peerKey})
	if err != nil {
		t.Fatalf("GetConversation error = %v", err)
	}
	if conv.Conversation.UnreadCount != 0 {
		t.Errorf("unread = %d after Acknowledge, want 0", conv.Conversation.UnreadCount)
	}

	events, err := sessionClient.WatchEvents(ctx, &wire.WatchEventsRequest{Prefix: "message."})
	if err != nil {
		t.Fatalf("WatchEvents error = %v", err)
	}
	// Let the server attach its subscription before sending.
	time.Sleep(50 * time.Millisecond)

	msgClient := wire.NewMessageServiceClient(conn)
	sendResp, err := msgClient.SendMessage(ctx, &wire.SendMessageRequest{Pubkey: peerKey, Text: "hi bob"})
	if err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}
	if sendResp.Error != "" || !sendResp.Message.Self || sendResp.Message.Text != "hi bob" {
		t.Errorf("SendMessage = %+v", sendResp)
	}
	if node.SentCount() != 1 {
		t.Errorf("sent = %d, want 1", node.SentCount())
	}

	got := make(chan *wire.EventEnvelope, 1)
	go func() {
		if evt, err := events.Recv(); err == nil {
			got <- evt
		}
	}()
	select {
	case evt := <-got:
		if evt.Kind != bus.KindMessageStored && evt.Kind != bus.KindMessageUpdated {
			t.Errorf("event kind = %q", evt.Kind)
		}
		if evt.Profile != profileName {
			t.Errorf("event profile = %q", evt.Profile)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message event")
	}

	msgs, err := msgClient.ListMessages(ctx, &wire.ListMessagesRequest{Pubkey: peerKey})
	if err != nil {
		t.Fatalf("ListMessages error = %v", err)
	}
	if len(msgs.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs.Messages))
	}
	var sent *wire.Message
	for i := range msgs.Messages {
		if msgs.Messages[i].Self {
			sent = &msgs.Messages[i]
		}
	}
	if sent == nil || sent.Status != string(ledger.StatusSucceeded) || sent.Text != "hi bob" {
		t.Errorf("sent message = %+v", sent)
	}

	if _, err := msgClient.SendMessage(ctx, &wire.SendMessageRequest{Pubkey: peerKey}); grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("SendMessage(empty) code = %v, want InvalidArgument", grpcstatus.Code(err))
	}

	final, err := sessionClient.GetStatus(ctx, &wire.GetStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if final.Conversations != 1 || final.Messages != 2 || final.InFlight != 0 {
		t.Errorf("GetStatus counts = %+v", final)
	}
}

func TestUnlockOverSocket(t *testing.T) {
	tmpDir := shortTempDir(t, "lnchat-unlock-*")
	socketPath := filepath.Join(tmpDir, "d.sock")

	h := newHarness(t)
	_ = h.machine.Transition(status.Locked)

	grpcSrv := grpc.NewServer()
	wire.RegisterSessionServiceServer(grpcSrv, api.NewSessionService("test", h.ctrl, h.machine, h.db, h.node, h.vault, bus.New(), nil))
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	go func() { _ = grpcSrv.Serve(ln) }()
	defer grpcSrv.GracefulStop()

	client := wire.NewSessionServiceClient(dial(t, socketPath))
	ctx := context.Background()

	resp, err := client.GetStatus(ctx, &wire.GetStatusRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(status.Locked) || !resp.Locked {
		t.Fatalf("status = %s locked = %v, want LOCKED", resp.Status, resp.Locked)
	}

	if _, err := client.Unlock(ctx, &wire.UnlockRequest{}); grpcstatus.Code(err) != codes.InvalidArgument {
		t.Errorf("Unlock(empty) code = %v, want InvalidArgument", grpcstatus.Code(err))
	}
	if _, err := client.Unlock(ctx, &wire.UnlockRequest{Passphrase: "hunter2"}); err != nil {
		t.Fatalf("Unlock error = %v", err)
	}
	waitForState(t, h.machine, status.Ready)

	if _, err := client.Lock(ctx, &wire.LockRequest{}); err != nil {
		t.Fatalf("Lock error = %v", err)
	}
	if _, err := client.Unlock(ctx, &wire.UnlockRequest{Passphrase: "nope"}); grpcstatus.Code(err) != codes.PermissionDenied {
		t.Errorf("Unlock(wrong) code = %v, want PermissionDenied", grpcstatus.Code(err))
	}
}

// TestFxModuleWiring verifies the fx dependency graph resolves and that a
// daemon with the passphrase in the environment reaches READY.
func TestFxModuleWiring(t *testing.T) {
	home := shortTempDir(t, "lnchat-fx-*")
	t.Setenv(profile.EnvHome, home)
	t.Setenv(config.EnvPassphrase, "hunter2")

	node := ledgertest.New(selfKey)
	node.Nodes[peerKey] = ledger.NodeInfo{Alias: "bob"}
	node.Invoices = append(node.Invoices, node.SignedInvoice(ledgertest.MessageSpec{Sender: peerKey, Content: "gm"}))

	socketPath := filepath.Join(home, "d.sock")
	p := Params{
		ProfileName: "fxtest",
		SocketPath:  socketPath,
		Config:      config.Default(),
		Ledger:      node,
	}
	if err := fx.ValidateApp(Module(p)); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}

	app := fx.New(Module(p), fx.NopLogger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = app.Stop(context.Background()) }()

	if _, err := os.Stat(profile.DBPath("fxtest")); err != nil {
		t.Fatalf("store not created under profile dir: %v", err)
	}

	client := wire.NewSessionServiceClient(dial(t, socketPath))
	deadline := time.Now().Add(5 * time.Second)
	var last string
	for time.Now().Before(deadline) {
		resp, err := client.GetStatus(ctx, &wire.GetStatusRequest{})
		if err == nil {
			last = resp.Status
			if last == string(status.Ready) {
				if resp.Conversations != 1 {
					t.Errorf("conversations = %d, want 1", resp.Conversations)
				}
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("daemon did not reach READY, last status %q", last)
}
