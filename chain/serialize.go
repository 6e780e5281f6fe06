package chain

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Operation IDs from the protocol's static variant order. Only the
// operations this client broadcasts are listed.
const (
	opIDVote           = 0
	opIDComment        = 1
	opIDCustomJSON     = 18
	opIDAccountUpdate2 = 43
)

// encoder builds the canonical binary form the transaction digest is
// computed over: little-endian integers, varint-length-prefixed strings.
type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	e.buf.Write(tmp[:n])
}

func (e *encoder) str(s string) {
	e.uvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) u16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	e.buf.Write(tmp[:])
}

func (e *encoder) u32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	e.buf.Write(tmp[:])
}

func (e *encoder) i16(v int16) {
	e.u16(uint16(v))
}

func (e *encoder) operation(op Operation) error {
	switch o := op.(type) {
	case VoteOperation:
		e.uvarint(opIDVote)
		e.str(o.Voter)
		e.str(o.Author)
		e.str(o.Permlink)
		e.i16(o.Weight)
	case CommentOperation:
		e.uvarint(opIDComment)
		e.str(o.ParentAuthor)
		e.str(o.ParentPermlink)
		e.str(o.Author)
		e.str(o.Permlink)
		e.str(o.Title)
		e.str(o.Body)
		e.str(o.JSONMetadata)
	case CustomJSONOperation:
		e.uvarint(opIDCustomJSON)
		e.uvarint(uint64(len(o.RequiredAuths)))
		for _, a := range o.RequiredAuths {
			e.str(a)
		}
		e.uvarint(uint64(len(o.RequiredPostingAuths)))
		for _, a := range o.RequiredPostingAuths {
			e.str(a)
		}
		e.str(o.ID)
		e.str(o.JSON)
	case AccountUpdate2Operation:
		e.uvarint(opIDAccountUpdate2)
		e.str(o.Account)
		e.str(o.JSONMetadata)
		e.str(o.PostingJSONMetadata)
		e.uvarint(0) // extensions
	default:
		return fmt.Errorf("chain: cannot serialize operation type %q", op.Type())
	}
	return nil
}
