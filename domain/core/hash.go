package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short returns the first 12 hex characters, for logs.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Hasher accumulates typed values into a sha256 digest using a fixed
// little-endian encoding.
type Hasher struct {
	h   hash.Hash
	buf [8]byte
}

func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Int(v int64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], uint64(v))
	h.h.Write(h.buf[:])
	return h
}

func (h *Hasher) Float(v float64) *Hasher {
	binary.LittleEndian.PutUint64(h.buf[:], math.Float64bits(v))
	h.h.Write(h.buf[:])
	return h
}

func (h *Hasher) Floats(vs []float64) *Hasher {
	h.Int(int64(len(vs)))
	for _, v := range vs {
		h.Float(v)
	}
	return h
}

func (h *Hasher) Bools(vs []bool) *Hasher {
	h.Int(int64(len(vs)))
	for _, v := range vs {
		if v {
			h.h.Write([]byte{1})
		} else {
			h.h.Write([]byte{0})
		}
	}
	return h
}

func (h *Hasher) String(s string) *Hasher {
	h.Int(int64(len(s)))
	h.h.Write([]byte(s))
	return h
}

// Strings hashes a set of strings independent of caller order.
func (h *Hasher) Strings(ss []string) *Hasher {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	return h.String(strings.Join(sorted, "\x00"))
}

func (h *Hasher) Sum() Hash {
	return Hash(hex.EncodeToString(h.h.Sum(nil)))
}
