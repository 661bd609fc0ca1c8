package codec

import "testing"

func TestUTFToBase64(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"hello", "aGVsbG8="},
		{"TEXT", "VEVYVA=="},
		{"1700000000000000000", "MTcwMDAwMDAwMDAwMDAwMDAwMA=="},
	}
	for _, tt := range tests {
		if got := UTFToBase64(tt.in); got != tt.want {
			t.Errorf("UTFToBase64(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBase64ToUTF(t *testing.T) {
	got, err := Base64ToUTF("aGVsbG8=")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("Base64ToUTF = %q, want hello", got)
	}

	// Unpadded input is accepted.
	got, err = Base64ToUTF("aGVsbG8")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("Base64ToUTF(unpadded) = %q, want hello", got)
	}

	if _, err := Base64ToUTF("!!not base64!!"); err == nil {
		t.Error("expected error for malformed input")
	}
}

func TestHexToBase64(t *testing.T) {
	got, err := HexToBase64("00ff10")
	if err != nil {
		t.Fatal(err)
	}
	if got != "AP8Q" {
		t.Errorf("HexToBase64 = %q, want AP8Q", got)
	}
	if _, err := HexToBase64("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestBytesHexRoundTrip(t *testing.T) {
	b := []byte{0x02, 0xab, 0xcd}
	h := BytesToHex(b)
	if h != "02abcd" {
		t.Errorf("BytesToHex = %q, want 02abcd", h)
	}
	back, err := HexToBytes(h)
	if err != nil {
		t.Fatal(err)
	}
	if string(back) != string(b) {
		t.Errorf("HexToBytes(%q) = %x, want %x", h, back, b)
	}
}

func TestShortPubkey(t *testing.T) {
	pk := "02aabbccddeeff00112233445566778899aabbccddeeff0011223344556677889a"
	if got := ShortPubkey(pk); got != "02aabb...77889a" {
		t.Errorf("ShortPubkey = %q", got)
	}
	if got := ShortPubkey("abc"); got != "abc" {
		t.Errorf("ShortPubkey(short) = %q, want abc", got)
	}
}

func TestFormatSats(t *testing.T) {
	tests := map[int64]string{
		0:        "0",
		7:        "7",
		999:      "999",
		1000:     "1,000",
		21000000: "21,000,000",
		-1500:    "-1,500",
	}
	for in, want := range tests {
		if got := FormatSats(in); got != want {
			t.Errorf("FormatSats(%d) = %q, want %q", in, got, want)
		}
	}
}
