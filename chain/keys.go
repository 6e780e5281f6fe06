package chain

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // protocol-mandated key checksum
)

// PublicKeyPrefix is prepended to encoded public keys.
const PublicKeyPrefix = "STM"

const b58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var (
	ErrInvalidWIF      = errors.New("chain: invalid WIF key")
	ErrBadChecksum     = errors.New("chain: key checksum mismatch")
	ErrInvalidEncoding = errors.New("chain: invalid base58 encoding")
)

var b58Index = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(b58Alphabet); i++ {
		idx[b58Alphabet[i]] = int8(i)
	}
	return idx
}()

func b58Encode(input []byte) string {
	x := new(big.Int).SetBytes(input)
	base := big.NewInt(58)
	mod := new(big.Int)
	var out []byte
	for x.Sign() > 0 {
		x.DivMod(x, base, mod)
		out = append(out, b58Alphabet[mod.Int64()])
	}
	for _, b := range input {
		if b != 0 {
			break
		}
		out = append(out, b58Alphabet[0])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

func b58Decode(s string) ([]byte, error) {
	x := new(big.Int)
	base := big.NewInt(58)
	for i := 0; i < len(s); i++ {
		d := b58Index[s[i]]
		if d < 0 {
			return nil, ErrInvalidEncoding
		}
		x.Mul(x, base)
		x.Add(x, big.NewInt(int64(d)))
	}
	out := x.Bytes()
	for i := 0; i < len(s) && s[i] == b58Alphabet[0]; i++ {
		out = append([]byte{0}, out...)
	}
	return out, nil
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// DecodeWIF parses a wallet-import-format private key.
func DecodeWIF(wif string) (*btcec.PrivateKey, error) {
	raw, err := b58Decode(wif)
	if err != nil {
		return nil, err
	}
	if len(raw) != 37 || raw[0] != 0x80 {
		return nil, ErrInvalidWIF
	}
	payload, checksum := raw[:33], raw[33:]
	if !bytes.Equal(doubleSHA256(payload)[:4], checksum) {
		return nil, ErrBadChecksum
	}
	key, _ := btcec.PrivKeyFromBytes(payload[1:])
	return key, nil
}

// EncodeWIF renders a private key in wallet-import-format.
func EncodeWIF(key *btcec.PrivateKey) string {
	payload := make([]byte, 0, 37)
	payload = append(payload, 0x80)
	payload = append(payload, key.Serialize()...)
	payload = append(payload, doubleSHA256(payload)[:4]...)
	return b58Encode(payload)
}

// PublicKeyString encodes a public key as the chain presents it:
// prefix + base58(compressed key || ripemd160 checksum).
func PublicKeyString(pub *btcec.PublicKey) string {
	comp := pub.SerializeCompressed()
	h := ripemd160.New()
	h.Write(comp)
	sum := h.Sum(nil)
	return PublicKeyPrefix + b58Encode(append(comp, sum[:4]...))
}

// ParsePublicKey decodes a prefixed public key string.
func ParsePublicKey(s string) (*btcec.PublicKey, error) {
	if len(s) <= len(PublicKeyPrefix) || s[:len(PublicKeyPrefix)] != PublicKeyPrefix {
		return nil, ErrInvalidEncoding
	}
	raw, err := b58Decode(s[len(PublicKeyPrefix):])
	if err != nil {
		return nil, err
	}
	if len(raw) != 37 {
		return nil, ErrInvalidEncoding
	}
	comp, checksum := raw[:33], raw[33:]
	h := ripemd160.New()
	h.Write(comp)
	if !bytes.Equal(h.Sum(nil)[:4], checksum) {
		return nil, ErrBadChecksum
	}
	return btcec.ParsePubKey(comp)
}
