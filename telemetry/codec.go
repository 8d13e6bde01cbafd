package telemetry

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// CBORCodec encodes a Snapshot as a 4-byte big-endian length prefix
// followed by a CBOR payload, mirroring the length-prefixed binary
// record shape used elsewhere in this codebase for compact structured
// data.
type CBORCodec struct{}

// Encode writes the length-prefixed CBOR encoding of s to w.
func (CBORCodec) Encode(w io.Writer, s Snapshot) error {
	payload, err := cbor.Marshal(s)
	if err != nil {
		return fmt.Errorf("telemetry: marshal snapshot: %w", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("telemetry: write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("telemetry: write payload: %w", err)
	}
	return nil
}

// Decode reads one length-prefixed CBOR snapshot from r.
func (CBORCodec) Decode(r io.Reader) (Snapshot, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Snapshot{}, fmt.Errorf("telemetry: read length prefix: %w", err)
	}
	length := binary.BigEndian.Uint32(prefix[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Snapshot{}, fmt.Errorf("telemetry: read payload: %w", err)
	}
	var s Snapshot
	if err := cbor.Unmarshal(payload, &s); err != nil {
		return Snapshot{}, fmt.Errorf("telemetry: unmarshal snapshot: %w", err)
	}
	return s, nil
}
