package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Transaction is an ordered operation list anchored to a recent block
// (TaPoS) with a bounded expiration. It is signed by exactly one
// credential before broadcast.
type Transaction struct {
	RefBlockNum    uint16
	RefBlockPrefix uint32
	Expiration     time.Time
	Operations     []Operation
	Signatures     []string
}

// NewTransaction anchors a transaction to the given head block state.
// headBlockNum is the current head block height; headBlockID its hex ID.
func NewTransaction(headBlockNum uint32, headBlockID string, expiry time.Duration, ops []Operation) (*Transaction, error) {
	if len(ops) == 0 {
		return nil, NewValidationError("operations", "empty operation list")
	}
	prefix, err := RefBlockPrefix(headBlockID)
	if err != nil {
		return nil, err
	}
	return &Transaction{
		RefBlockNum:    uint16(headBlockNum & 0xffff),
		RefBlockPrefix: prefix,
		Expiration:     time.Now().UTC().Add(expiry).Truncate(time.Second),
		Operations:     ops,
	}, nil
}

// RefBlockPrefix extracts the TaPoS prefix from a hex block ID: bytes
// 4..8 of the ID read little-endian.
func RefBlockPrefix(blockID string) (uint32, error) {
	if len(blockID) < 16 {
		return 0, fmt.Errorf("chain: block id %q too short", blockID)
	}
	raw, err := hex.DecodeString(blockID[8:16])
	if err != nil {
		return 0, fmt.Errorf("chain: invalid block id %q: %w", blockID, err)
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// Serialize renders the canonical binary form used for the signing digest.
func (tx *Transaction) Serialize() ([]byte, error) {
	var e encoder
	e.u16(tx.RefBlockNum)
	e.u32(tx.RefBlockPrefix)
	e.u32(uint32(tx.Expiration.UTC().Unix()))
	e.uvarint(uint64(len(tx.Operations)))
	for _, op := range tx.Operations {
		if err := e.operation(op); err != nil {
			return nil, err
		}
	}
	e.uvarint(0) // extensions
	return e.buf.Bytes(), nil
}

// Digest is the value signatures commit to: sha256 over the chain ID
// followed by the serialized transaction.
func (tx *Transaction) Digest(chainID []byte) ([32]byte, error) {
	ser, err := tx.Serialize()
	if err != nil {
		return [32]byte{}, err
	}
	h := sha256.New()
	h.Write(chainID)
	h.Write(ser)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// MarshalJSON renders the broadcast wire shape with [type, body]
// operation pairs and the node's timestamp layout.
func (tx *Transaction) MarshalJSON() ([]byte, error) {
	ops, err := WireOperations(tx.Operations)
	if err != nil {
		return nil, err
	}
	sigs := tx.Signatures
	if sigs == nil {
		sigs = []string{}
	}
	return json.Marshal(map[string]any{
		"ref_block_num":    tx.RefBlockNum,
		"ref_block_prefix": tx.RefBlockPrefix,
		"expiration":       tx.Expiration.UTC().Format(TimeFormat),
		"operations":       ops,
		"extensions":       []any{},
		"signatures":       sigs,
	})
}
