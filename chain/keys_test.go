package chain

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

func testKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	raw, _ := hex.DecodeString("edc90d06fee17615229c8526dc005d959e4af3bdc0b48c5776c951bcafedec85")
	key, _ := btcec.PrivKeyFromBytes(raw)
	return key
}

func TestWIFRoundTrip(t *testing.T) {
	key := testKey(t)
	wif := EncodeWIF(key)
	if !strings.HasPrefix(wif, "5") {
		t.Errorf("mainnet WIF should start with 5, got %q", wif)
	}

	decoded, err := DecodeWIF(wif)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Serialize(), key.Serialize()) {
		t.Error("round-tripped key differs")
	}
}

func TestDecodeWIFRejectsTampering(t *testing.T) {
	wif := EncodeWIF(testKey(t))

	// Flip a character in the middle; checksum must catch it.
	b := []byte(wif)
	if b[10] == '2' {
		b[10] = '3'
	} else {
		b[10] = '2'
	}
	if _, err := DecodeWIF(string(b)); err == nil {
		t.Error("tampered WIF accepted")
	}

	if _, err := DecodeWIF("not-base58-0OIl"); err == nil {
		t.Error("invalid base58 accepted")
	}
}

func TestPublicKeyStringRoundTrip(t *testing.T) {
	pub := testKey(t).PubKey()
	s := PublicKeyString(pub)
	if !strings.HasPrefix(s, PublicKeyPrefix) {
		t.Errorf("encoded key %q missing %s prefix", s, PublicKeyPrefix)
	}

	parsed, err := ParsePublicKey(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.IsEqual(pub) {
		t.Error("round-tripped public key differs")
	}

	if _, err := ParsePublicKey("XYZ123"); err == nil {
		t.Error("wrong prefix accepted")
	}
}

func TestSignProducesCanonicalSignature(t *testing.T) {
	key := testKey(t)
	chainID, _ := DecodeChainID(MainnetChainID)

	tx := &Transaction{
		RefBlockNum:    100,
		RefBlockPrefix: 200,
		Expiration:     time.Now().UTC().Add(time.Minute).Truncate(time.Second),
		Operations: []Operation{
			VoteOperation{Voter: "alice", Author: "bob", Permlink: "post", Weight: 10000},
		},
	}
	if err := tx.Sign(key, chainID); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(tx.Signatures) != 1 {
		t.Fatalf("signatures = %d, want 1", len(tx.Signatures))
	}

	sig, err := hex.DecodeString(tx.Signatures[0])
	if err != nil {
		t.Fatalf("signature not hex: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature length = %d, want 65", len(sig))
	}
	if !isCanonical(sig) {
		t.Error("signature is not canonical")
	}
}

func TestHighestAuthority(t *testing.T) {
	posting := []Operation{
		VoteOperation{Voter: "a", Author: "b", Permlink: "c", Weight: 1},
		CustomJSONOperation{RequiredPostingAuths: []string{"a"}, ID: "follow", JSON: "[]"},
	}
	if got := HighestAuthority(posting); got != AuthorityPosting {
		t.Errorf("authority = %s, want posting", got)
	}

	mixed := append(posting, AccountUpdate2Operation{Account: "a", JSONMetadata: "{}"})
	if got := HighestAuthority(mixed); got != AuthorityActive {
		t.Errorf("authority = %s, want active", got)
	}
}
