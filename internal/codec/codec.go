// Package codec converts values between their wire form (raw bytes, as
// carried in custom records) and the Base64/hex/UTF-8 strings the rest of the
// application works with.
package codec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// UTFToBase64 encodes a UTF-8 string as standard Base64.
func UTFToBase64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// HexToBase64 re-encodes a hex string (e.g. a node pubkey) as Base64.
func HexToBase64(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode hex: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Base64ToUTF decodes a Base64 string and interprets the bytes as UTF-8.
func Base64ToUTF(s string) (string, error) {
	b, err := Base64ToBytes(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BytesToBase64 encodes raw bytes as standard Base64.
func BytesToBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Base64ToBytes decodes standard Base64, tolerating missing padding.
func Base64ToBytes(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}

// HexToBytes decodes a hex string.
func HexToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

// BytesToHex encodes raw bytes as lowercase hex.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// ShortPubkey abbreviates a node pubkey for display: first and last six
// characters joined by an ellipsis.
func ShortPubkey(pubkey string) string {
	if len(pubkey) <= 12 {
		return pubkey
	}
	return pubkey[:6] + "..." + pubkey[len(pubkey)-6:]
}

// FormatSats renders an amount with comma thousands separators.
func FormatSats(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
