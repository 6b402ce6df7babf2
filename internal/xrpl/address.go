package xrpl

import (
	"bytes"
	"crypto/sha256"
	"math/big"
	"strings"
)

// XRPL base58 alphabet. Differs from the Bitcoin alphabet, which is why the
// usual base58 packages cannot be used here.
const alphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

const (
	classicAddressPrefix = 0x00
	familySeedPrefix     = 0x21
	checksumLen          = 4
)

// ed25519 seeds carry a 3-byte prefix instead of the single-byte family
// seed prefix.
var ed25519SeedPrefix = []byte{0x01, 0xe1, 0x4b}

var decodeTable = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		t[alphabet[i]] = int8(i)
	}
	return t
}()

// decodeBase58Check decodes an XRPL base58check string and verifies the
// double-sha256 checksum, returning the payload without the checksum.
func decodeBase58Check(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}

	num := new(big.Int)
	radix := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		d := decodeTable[s[i]]
		if d < 0 {
			return nil, false
		}
		num.Mul(num, radix)
		num.Add(num, big.NewInt(int64(d)))
	}

	decoded := num.Bytes()
	// Leading 'r' characters encode leading zero bytes.
	for i := 0; i < len(s) && s[i] == alphabet[0]; i++ {
		decoded = append([]byte{0}, decoded...)
	}

	if len(decoded) < checksumLen+1 {
		return nil, false
	}
	payload := decoded[:len(decoded)-checksumLen]
	checksum := decoded[len(decoded)-checksumLen:]

	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(second[:checksumLen], checksum) {
		return nil, false
	}
	return payload, true
}

// IsValidClassicAddress reports whether s is a well-formed XRPL classic
// address (r..., 20-byte account id, valid checksum).
func IsValidClassicAddress(s string) bool {
	if !strings.HasPrefix(s, "r") || len(s) < 25 || len(s) > 35 {
		return false
	}
	payload, ok := decodeBase58Check(s)
	if !ok {
		return false
	}
	return len(payload) == 21 && payload[0] == classicAddressPrefix
}

// IsValidSeed reports whether s is a well-formed wallet seed, either a
// secp256k1 family seed (s...) or an ed25519 seed (sEd...). Signing happens
// server-side, so only the shape is checked here; a seed that does not match
// its configured address is rejected by the ledger on first use.
func IsValidSeed(s string) bool {
	if !strings.HasPrefix(s, "s") {
		return false
	}
	payload, ok := decodeBase58Check(s)
	if !ok {
		return false
	}
	if len(payload) == 17 && payload[0] == familySeedPrefix {
		return true
	}
	return len(payload) == 19 && bytes.Equal(payload[:3], ed25519SeedPrefix)
}
