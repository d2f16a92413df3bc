package frame

import (
	"strconv"

	"github.com/pkg/errors"
)

// STOMP header names used by the client. Commands use upper-case names,
// headers use the lower-case names from the STOMP specifications.
const (
	AcceptVersion = "accept-version"
	Ack           = "ack"
	ContentLength = "content-length"
	ContentType   = "content-type"
	Destination   = "destination"
	HeartBeat     = "heart-beat"
	Host          = "host"
	Id            = "id"
	Login         = "login"
	Message       = "message"
	MessageId     = "message-id"
	Passcode      = "passcode"
	Receipt       = "receipt"
	ReceiptId     = "receipt-id"
	Server        = "server"
	Session       = "session"
	Subscription  = "subscription"
	Transaction   = "transaction"
	Version       = "version"
)

// Header is the ordered list of header entries in a STOMP frame. Entries
// keep their insertion (or arrival) order for serialization, and a key may
// appear more than once. Per the STOMP specification the first entry for a
// key is the effective value; later entries are kept for wire fidelity but
// ignored by lookups.
//
// The zero value is not usable; create headers with NewHeader.
type Header struct {
	entries []string // flat key/value pairs
}

// NewHeader creates a Header from alternating key/value strings. A trailing
// key without a value gets an empty value.
func NewHeader(pairs ...string) *Header {
	h := &Header{entries: append([]string(nil), pairs...)}
	if len(h.entries)%2 != 0 {
		h.entries = append(h.entries, "")
	}
	return h
}

// Add appends a header entry, keeping any existing entries for the key.
func (h *Header) Add(key, value string) {
	h.entries = append(h.entries, key, value)
}

// AddHeader appends every entry of other to h. A nil other is a no-op.
func (h *Header) AddHeader(other *Header) {
	if other != nil {
		h.entries = append(h.entries, other.entries...)
	}
}

// Set replaces the effective (first) entry for key, or appends a new entry
// if the key is not present.
func (h *Header) Set(key, value string) {
	if i, ok := h.index(key); ok {
		h.entries[i+1] = value
		return
	}
	h.entries = append(h.entries, key, value)
}

// Get returns the effective value for key, or "" if the key is absent.
func (h *Header) Get(key string) string {
	value, _ := h.Contains(key)
	return value
}

// Contains returns the effective value for key and whether an entry exists.
func (h *Header) Contains(key string) (string, bool) {
	if i, ok := h.index(key); ok {
		return h.entries[i+1], true
	}
	return "", false
}

// GetAll returns every value recorded for key, in order.
func (h *Header) GetAll(key string) []string {
	var values []string
	for i := 0; i < len(h.entries); i += 2 {
		if h.entries[i] == key {
			values = append(values, h.entries[i+1])
		}
	}
	return values
}

// GetAt returns the entry at index. Index must be in [0, Len()).
func (h *Header) GetAt(index int) (key, value string) {
	index *= 2
	return h.entries[index], h.entries[index+1]
}

// Del removes every entry for key.
func (h *Header) Del(key string) {
	for i, ok := h.index(key); ok; i, ok = h.index(key) {
		h.entries = append(h.entries[:i], h.entries[i+2:]...)
	}
}

// Len returns the number of header entries.
func (h *Header) Len() int {
	return len(h.entries) / 2
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	c := &Header{entries: make([]string, len(h.entries))}
	copy(c.entries, h.entries)
	return c
}

// ContentLength returns the value of the content-length entry. ok is false
// if the entry is absent; err is non-nil if it is present but not a valid
// non-negative integer.
func (h *Header) ContentLength() (value int, ok bool, err error) {
	text, ok := h.Contains(ContentLength)
	if !ok {
		return 0, false, nil
	}

	n, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, true, errors.Wrapf(err, "invalid content-length %q", text)
	}

	return int(n), true, nil
}

func (h *Header) index(key string) (int, bool) {
	for i := 0; i < len(h.entries); i += 2 {
		if h.entries[i] == key {
			return i, true
		}
	}
	return 0, false
}
