package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address is a 20-byte account or token identifier. The zero value is the
// null identity and is rejected wherever the engines require a real party.
type Address = [20]byte

// ParseAddress decodes a 40-character hex string, with or without an 0x
// prefix, into an address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// FormatAddress renders the address as 0x-prefixed lowercase hex.
func FormatAddress(addr Address) string {
	return "0x" + hex.EncodeToString(addr[:])
}
