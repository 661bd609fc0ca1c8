package tlv

import (
	"bytes"
	"testing"
)

// 104 zbase32 characters, the length lnd produces for a 65 byte signature.
const testSig = "rbw7zq4ggmk4ou1d3dwyhcp1y3qjrgd5muq3gx8m1ixsb7tfbk7sa5emj5s8ydu3ffnts7sk3yos5utigjb9xpwc4j9gzc3x8ddy6iyo"

func TestKeysAreStable(t *testing.T) {
	want := map[uint64]string{
		5482373484: "preimage",
		34349339:   "sender_pubkey",
		34349343:   "timestamp",
		34349334:   "content",
		34349337:   "signature",
		34349345:   "content_type",
	}
	if len(Keys) != len(want) {
		t.Fatalf("len(Keys) = %d, want %d", len(Keys), len(want))
	}
	for _, k := range Keys {
		name, ok := want[k]
		if !ok {
			t.Errorf("unexpected key %d", k)
			continue
		}
		if Name(k) != name {
			t.Errorf("Name(%d) = %q, want %q", k, Name(k), name)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	in := Fields{
		Preimage:     bytes.Repeat([]byte{0xab}, 32),
		SenderPubkey: "02aa",
		Timestamp:    "1700000000000000000",
		Content:      "hello",
		Signature:    testSig,
		ContentType:  "TEXT",
	}
	records, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(records[MessageContent]) != "hello" {
		t.Errorf("content record = %q", records[MessageContent])
	}
	if string(records[Timestamp]) != "1700000000000000000" {
		t.Errorf("timestamp record = %q", records[Timestamp])
	}

	out := Decode(records)
	if !bytes.Equal(out.Preimage, in.Preimage) {
		t.Errorf("preimage mismatch")
	}
	if out.Signature != testSig {
		t.Errorf("Signature = %q, want %q", out.Signature, testSig)
	}
	if out.SenderPubkey != in.SenderPubkey || out.Content != in.Content || out.ContentType != in.ContentType {
		t.Errorf("Decode = %+v", out)
	}
	if !out.Complete() {
		t.Errorf("expected complete, missing %v", out.Missing())
	}
	if out.ID() == "" {
		t.Error("expected non-empty id")
	}
}

func TestMissing(t *testing.T) {
	f := Decode(map[uint64][]byte{
		MessageContent: []byte("hi"),
		Timestamp:      []byte("1"),
		99:             []byte("ignored"),
	})
	if f.Complete() {
		t.Fatal("expected incomplete")
	}
	if !f.HasContent() {
		t.Error("expected content")
	}
	missing := f.Missing()
	want := []uint64{KeysendPreimage, SenderPubkey, Signature, ContentType}
	if len(missing) != len(want) {
		t.Fatalf("Missing() = %v, want %v", missing, want)
	}
	for i := range want {
		if missing[i] != want[i] {
			t.Errorf("Missing()[%d] = %d, want %d", i, missing[i], want[i])
		}
	}
	if f.ID() != "" {
		t.Errorf("ID() = %q, want empty", f.ID())
	}
}

func TestEncodeRejectsBadSignature(t *testing.T) {
	if _, err := Encode(Fields{Signature: "not*base64"}); err == nil {
		t.Error("expected error")
	}
}

func TestSignedPayload(t *testing.T) {
	got := string(SignedPayload("02bb", "123", "hi"))
	if got != "02bb123hi" {
		t.Errorf("SignedPayload = %q", got)
	}
}
