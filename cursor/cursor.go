// Package cursor provides sync position tokens used to resume incremental
// (delta) synchronization, together with a stable JSON wire form.
package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const (
	KindSeq   = "seq"
	KindToken = "token"
)

// Cursor marks a position in the remote change stream. A nil Cursor means
// "from the beginning", i.e. a base (full) query.
type Cursor interface {
	Kind() string

	// IsZero reports whether this cursor is the zero/initial position.
	IsZero() bool

	String() string
}

// Codec marshals cursors of one kind to and from their wire data.
type Codec interface {
	Kind() string
	Marshal(c Cursor) (json.RawMessage, error)
	Unmarshal(data json.RawMessage) (Cursor, error)
}

var (
	registry   = map[string]Codec{}
	registryMu sync.RWMutex
)

// Register installs a codec for its kind, replacing any previous codec.
func Register(c Codec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[c.Kind()] = c
}

// Lookup returns the codec registered for kind, if any.
func Lookup(kind string) (Codec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cc, ok := registry[kind]
	return cc, ok
}

// Maximum allowed size for a wire cursor payload.
const maxWireCursorSize = 64 * 1024 // 64 KB

// WireCursor is the typed union carried over transports.
type WireCursor struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalWire converts a cursor into its wire form.
func MarshalWire(c Cursor) (*WireCursor, error) {
	codec, ok := Lookup(c.Kind())
	if !ok {
		return nil, fmt.Errorf("unknown cursor kind: %s", c.Kind())
	}
	data, err := codec.Marshal(c)
	if err != nil {
		return nil, err
	}
	return &WireCursor{Kind: codec.Kind(), Data: data}, nil
}

// ValidateWire checks structural validity of a wire cursor without decoding it.
func ValidateWire(wc *WireCursor) error {
	if wc == nil {
		return errors.New("nil wire cursor")
	}
	if len(wc.Data) > maxWireCursorSize {
		return fmt.Errorf("cursor payload too large: %d bytes", len(wc.Data))
	}
	if _, ok := Lookup(wc.Kind); !ok {
		return fmt.Errorf("unknown cursor kind: %s", wc.Kind)
	}
	return nil
}

// UnmarshalWire decodes a wire cursor into its typed form.
func UnmarshalWire(wc *WireCursor) (Cursor, error) {
	if err := ValidateWire(wc); err != nil {
		return nil, err
	}
	codec, _ := Lookup(wc.Kind)
	return codec.Unmarshal(wc.Data)
}

// SeqCursor is a server-assigned high-water mark.
type SeqCursor struct {
	Seq uint64
}

func (SeqCursor) Kind() string { return KindSeq }

func (c SeqCursor) IsZero() bool { return c.Seq == 0 }

func (c SeqCursor) String() string { return fmt.Sprintf("seq:%d", c.Seq) }

type seqCodec struct{}

func (seqCodec) Kind() string { return KindSeq }

func (seqCodec) Marshal(c Cursor) (json.RawMessage, error) {
	sc, ok := c.(SeqCursor)
	if !ok {
		return nil, fmt.Errorf("expected SeqCursor, got %T", c)
	}
	return json.Marshal(sc.Seq)
}

func (seqCodec) Unmarshal(data json.RawMessage) (Cursor, error) {
	var seq uint64
	if err := json.Unmarshal(data, &seq); err != nil {
		return nil, err
	}
	return SeqCursor{Seq: seq}, nil
}

// TokenCursor carries an opaque server-issued delta token. The client never
// interprets the token; it only round-trips it.
type TokenCursor struct {
	Token string
}

func (TokenCursor) Kind() string { return KindToken }

func (c TokenCursor) IsZero() bool { return c.Token == "" }

func (c TokenCursor) String() string { return "token:" + c.Token }

type tokenCodec struct{}

func (tokenCodec) Kind() string { return KindToken }

func (tokenCodec) Marshal(c Cursor) (json.RawMessage, error) {
	tc, ok := c.(TokenCursor)
	if !ok {
		return nil, fmt.Errorf("expected TokenCursor, got %T", c)
	}
	return json.Marshal(tc.Token)
}

func (tokenCodec) Unmarshal(data json.RawMessage) (Cursor, error) {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return TokenCursor{Token: token}, nil
}

func init() {
	Register(seqCodec{})
	Register(tokenCodec{})
}

// NewSeq creates a SeqCursor at the given sequence number.
func NewSeq(seq uint64) SeqCursor {
	return SeqCursor{Seq: seq}
}

// NewToken creates a TokenCursor carrying the given opaque token.
func NewToken(token string) TokenCursor {
	return TokenCursor{Token: token}
}

// Encode marshals a cursor to its wire JSON bytes. A nil cursor encodes to
// JSON null, which Decode maps back to nil.
func Encode(c Cursor) ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	wc, err := MarshalWire(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wc)
}

// Decode parses wire JSON bytes into a cursor. JSON null and empty input
// decode to nil.
func Decode(data []byte) (Cursor, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var wc WireCursor
	if err := json.Unmarshal(data, &wc); err != nil {
		return nil, err
	}
	return UnmarshalWire(&wc)
}
