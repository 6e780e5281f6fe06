package chain

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Sign appends a recoverable signature over the transaction digest.
// Nodes reject non-canonical signatures, and the deterministic nonce
// always produces the same one for a given digest, so the expiration is
// nudged forward a second until the signature comes out canonical.
func (tx *Transaction) Sign(key *btcec.PrivateKey, chainID []byte) error {
	const maxAttempts = 32
	for attempt := 0; attempt < maxAttempts; attempt++ {
		digest, err := tx.Digest(chainID)
		if err != nil {
			return err
		}
		sig := ecdsa.SignCompact(key, digest[:], true)
		if isCanonical(sig) {
			tx.Signatures = append(tx.Signatures, hex.EncodeToString(sig))
			return nil
		}
		tx.Expiration = tx.Expiration.Add(time.Second)
	}
	return errors.New("chain: could not produce canonical signature")
}

// isCanonical applies the node's canonicality rule to a 65-byte compact
// signature (header byte, then r and s).
func isCanonical(sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	return sig[1]&0x80 == 0 &&
		!(sig[1] == 0 && sig[2]&0x80 == 0) &&
		sig[33]&0x80 == 0 &&
		!(sig[33] == 0 && sig[34]&0x80 == 0)
}
