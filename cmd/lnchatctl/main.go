package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/lnchat/internal/client"
	"github.com/matheus3301/lnchat/internal/codec"
	"github.com/matheus3301/lnchat/internal/config"
	"github.com/matheus3301/lnchat/internal/profile"
	"github.com/matheus3301/lnchat/internal/wire"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	socketPath := profile.SocketPath(profileName)
	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", profileName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	root, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if args[0] == "watch" {
		prefix := ""
		if len(args) > 1 {
			prefix = args[1]
		}
		cmdWatch(root, c, prefix, *jsonFlag)
		return
	}

	timeout := 10 * time.Second
	if args[0] == "sync" {
		// A cold pass walks the whole lookback window.
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(root, timeout)
	defer cancel()

	out := *jsonFlag
	switch args[0] {
	case "status":
		cmdStatus(ctx, c, out)
	case "unlock":
		cmdUnlock(ctx, c)
	case "lock":
		check(c.Session.Lock(ctx, &wire.LockRequest{}))
		fmt.Println("Locked.")
	case "sync":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: lnchatctl sync <start|status>")
			os.Exit(1)
		}
		cmdSync(ctx, c, args[1], out)
	case "conversations", "ls":
		cmdConversations(ctx, c, args[1:], out)
	case "add":
		cmdAdd(ctx, c, arg(args, 1, "add <pubkey>"), out)
	case "messages":
		cmdMessages(ctx, c, args[1:], out)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: lnchatctl send <pubkey> <text...>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "), 0, out)
	case "pay":
		if len(args) < 4 {
			fmt.Fprintln(os.Stderr, "usage: lnchatctl pay <pubkey> <sats> <text...>")
			os.Exit(1)
		}
		sats, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil || sats <= 0 {
			fmt.Fprintf(os.Stderr, "error: invalid amount %q\n", args[2])
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[3:], " "), sats, out)
	case "ack":
		pubkey := arg(args, 1, "ack <pubkey>")
		check(c.Chat.Acknowledge(ctx, &wire.AcknowledgeRequest{Pubkey: pubkey}))
	case "block", "unblock":
		pubkey := arg(args, 1, args[0]+" <pubkey>")
		check(c.Chat.SetBlocked(ctx, &wire.SetBlockedRequest{Pubkey: pubkey, Blocked: args[0] == "block"}))
	case "bookmark", "unbookmark":
		pubkey := arg(args, 1, args[0]+" <pubkey>")
		check(c.Chat.SetBookmarked(ctx, &wire.SetBookmarkedRequest{Pubkey: pubkey, Bookmarked: args[0] == "bookmark"}))
	case "focus":
		pubkey := ""
		if len(args) > 1 {
			pubkey = args[1]
		}
		check(c.Chat.Focus(ctx, &wire.FocusRequest{Pubkey: pubkey, Visible: pubkey != ""}))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: lnchatctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                      Show daemon status")
	fmt.Fprintln(os.Stderr, "  unlock                      Unlock storage ($LNCHAT_PASSPHRASE or stdin)")
	fmt.Fprintln(os.Stderr, "  lock                        Lock storage and stop live updates")
	fmt.Fprintln(os.Stderr, "  sync start                  Run a sync pass")
	fmt.Fprintln(os.Stderr, "  sync status                 Show cursor and first-sync state")
	fmt.Fprintln(os.Stderr, "  conversations [blocked|bookmarked]")
	fmt.Fprintln(os.Stderr, "                              List conversations")
	fmt.Fprintln(os.Stderr, "  add <pubkey>                Start a conversation")
	fmt.Fprintln(os.Stderr, "  messages <pubkey> [limit]   Show recent messages")
	fmt.Fprintln(os.Stderr, "  send <pubkey> <text...>     Send a message")
	fmt.Fprintln(os.Stderr, "  pay <pubkey> <sats> <text...>")
	fmt.Fprintln(os.Stderr, "                              Send a message with a payment")
	fmt.Fprintln(os.Stderr, "  ack <pubkey>                Mark a conversation read")
	fmt.Fprintln(os.Stderr, "  block|unblock <pubkey>")
	fmt.Fprintln(os.Stderr, "  bookmark|unbookmark <pubkey>")
	fmt.Fprintln(os.Stderr, "  focus [pubkey]              Set or clear the open conversation")
	fmt.Fprintln(os.Stderr, "  watch [prefix]              Stream daemon events")
}

func arg(args []string, i int, usage string) string {
	if len(args) <= i {
		fmt.Fprintf(os.Stderr, "usage: lnchatctl %s\n", usage)
		os.Exit(1)
	}
	return args[i]
}

func check[T any](_ T, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func must[T any](v T, err error) T {
	check(v, err)
	return v
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	resp := must(c.Session.GetStatus(ctx, &wire.GetStatusRequest{}))
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Profile:       %s\n", resp.Profile)
	fmt.Printf("Status:        %s (since %s)\n", resp.Status, time.UnixMilli(resp.StatusSinceUnixMs).Format(time.RFC3339))
	fmt.Printf("Uptime:        %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
	fmt.Printf("Locked:        %v\n", resp.Locked)
	if resp.Pubkey != "" {
		fmt.Printf("Node:          %s\n", resp.Pubkey)
	}
	fmt.Printf("Conversations: %d\n", resp.Conversations)
	fmt.Printf("Messages:      %d (%d in flight)\n", resp.Messages, resp.InFlight)
}

func cmdUnlock(ctx context.Context, c *client.Client) {
	pass, ok := config.Passphrase()
	if !ok {
		fmt.Fprint(os.Stderr, "passphrase: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		pass = strings.TrimRight(line, "\r\n")
	}
	check(c.Session.Unlock(ctx, &wire.UnlockRequest{Passphrase: pass}))
	fmt.Println("Unlocked. Connecting to the node.")
}

func cmdSync(ctx context.Context, c *client.Client, subcmd string, jsonOut bool) {
	switch subcmd {
	case "start":
		resp := must(c.Sync.StartSync(ctx, &wire.StartSyncRequest{}))
		if jsonOut {
			outputJSON(resp)
			return
		}
		fmt.Printf("Mode:          %s\n", resp.Mode)
		fmt.Printf("Fetched:       %d invoices, %d payments\n", resp.Invoices, resp.Payments)
		fmt.Printf("Conversations: %d\n", resp.Conversations)
		fmt.Printf("Stored:        %d new, %d duplicates, %d anonymous\n", resp.Inserted, resp.Duplicates, resp.Anonymous)
		fmt.Printf("Cursor:        %s\n", time.Unix(resp.Cursor, 0).Format(time.RFC3339))
	case "status":
		resp := must(c.Sync.GetSyncStatus(ctx, &wire.GetSyncStatusRequest{}))
		if jsonOut {
			outputJSON(resp)
			return
		}
		fmt.Printf("Syncing:       %v\n", resp.Syncing)
		fmt.Printf("First sync:    %v\n", resp.FirstSyncComplete)
		if resp.Cursor > 0 {
			fmt.Printf("Cursor:        %s\n", time.Unix(resp.Cursor, 0).Format(time.RFC3339))
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown sync subcommand: %s\n", subcmd)
		os.Exit(1)
	}
}

func cmdConversations(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	req := &wire.ListConversationsRequest{}
	if len(args) > 0 {
		switch args[0] {
		case "blocked":
			req.Blocked = "true"
		case "bookmarked":
			req.BookmarkedOnly = true
		default:
			fmt.Fprintf(os.Stderr, "unknown filter: %s\n", args[0])
			os.Exit(1)
		}
	}
	resp := must(c.Chat.ListConversations(ctx, req))
	if jsonOut {
		outputJSON(resp)
		return
	}
	if len(resp.Conversations) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, conv := range resp.Conversations {
		fmt.Println(formatConversation(conv))
	}
}

func formatConversation(conv wire.Conversation) string {
	name := conv.Alias
	if name == "" {
		name = codec.ShortPubkey(conv.Pubkey)
	}
	flags := ""
	if conv.Bookmarked {
		flags += "*"
	}
	if conv.Blocked == "true" {
		flags += "x"
	}
	unread := ""
	if conv.UnreadCount > 0 {
		unread = fmt.Sprintf("(%d)", conv.UnreadCount)
	}
	return fmt.Sprintf("%-2s %-24s %-6s %s", flags, name, unread, conv.Pubkey)
}

func cmdAdd(ctx context.Context, c *client.Client, pubkey string, jsonOut bool) {
	resp := must(c.Chat.AddConversation(ctx, &wire.AddConversationRequest{Pubkey: pubkey}))
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Println(formatConversation(resp.Conversation))
}

func cmdMessages(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lnchatctl messages <pubkey> [limit]")
		os.Exit(1)
	}
	req := &wire.ListMessagesRequest{Pubkey: args[0], Limit: 20}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "error: invalid limit %q\n", args[1])
			os.Exit(1)
		}
		req.Limit = n
	}
	resp := must(c.Message.ListMessages(ctx, req))
	if jsonOut {
		outputJSON(resp)
		return
	}
	// Oldest first, like a chat window.
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		fmt.Println(formatMessage(resp.Messages[i]))
	}
}

func formatMessage(m wire.Message) string {
	who := "<"
	if m.Self {
		who = ">"
	}
	text := m.Text
	if m.Sealed {
		text = "[unreadable]"
	}
	if m.Type == "PAYMENT" {
		text = fmt.Sprintf("[%s sats] %s", codec.FormatSats(m.Amount), text)
	}
	line := fmt.Sprintf("%s %s %s", time.Unix(0, m.ReceivedTimestamp).Format("2006-01-02 15:04"), who, text)
	if m.Self && m.Status != "SUCCEEDED" {
		line += " (" + strings.ToLower(m.Status)
		if m.FailureReason != "" && m.FailureReason != "FAILURE_REASON_NONE" {
			line += ": " + m.FailureReason
		}
		line += ")"
	}
	return line
}

func cmdSend(ctx context.Context, c *client.Client, pubkey, text string, sats int64, jsonOut bool) {
	resp := must(c.Message.SendMessage(ctx, &wire.SendMessageRequest{Pubkey: pubkey, Text: text, AmountSat: sats}))
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Println(formatMessage(resp.Message))
	if resp.Error != "" {
		fmt.Fprintf(os.Stderr, "error: %s\n", resp.Error)
		os.Exit(1)
	}
}

func cmdWatch(ctx context.Context, c *client.Client, prefix string, jsonOut bool) {
	events := must(c.Session.WatchEvents(ctx, &wire.WatchEventsRequest{Prefix: prefix}))
	for {
		evt, err := events.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if jsonOut {
			outputJSON(evt)
			continue
		}
		fmt.Printf("%s %-28s %s\n", time.UnixMilli(evt.OccurredAtUnixMs).Format("15:04:05"), evt.Kind, evt.Payload)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
