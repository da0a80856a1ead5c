package utils

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Channel is a hash transcript. Every message is absorbed into a running
// state, so the final state commits to the whole ordered message sequence.
type Channel struct {
	state    []byte
	log      []string
	hashFunc string
}

// ValidHashFunction reports whether name is a supported hash function
func ValidHashFunction(name string) bool {
	return name == "sha256" || name == "sha3"
}

// NewChannel creates a new transcript channel
func NewChannel(hashFunc string) *Channel {
	if hashFunc == "" {
		hashFunc = "sha3"
	}
	return &Channel{
		state:    []byte{0},
		log:      make([]string, 0, 64),
		hashFunc: hashFunc,
	}
}

// Send appends data to the channel state
func (c *Channel) Send(data []byte) {
	c.log = append(c.log, fmt.Sprintf("send:%s", hex.EncodeToString(data)))
	c.state = c.hash(append(c.state, data...))
}

// SendString absorbs a labelled string
func (c *Channel) SendString(label, s string) {
	buf := make([]byte, 0, len(label)+len(s)+9)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(label)))
	buf = append(buf, label...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	buf = append(buf, s...)
	c.Send(buf)
}

// SendFloat absorbs a labelled float64 by its IEEE-754 bits
func (c *Channel) SendFloat(label string, v float64) {
	if v == 0 {
		v = 0 // -0 and 0 hash alike
	}
	buf := make([]byte, 0, len(label)+12)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(label)))
	buf = append(buf, label...)
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
	c.Send(buf)
}

// SendInt absorbs a labelled integer
func (c *Channel) SendInt(label string, v int) {
	buf := make([]byte, 0, len(label)+12)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(label)))
	buf = append(buf, label...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(v))
	c.Send(buf)
}

// ReceiveUint64 squeezes a value out of the state and advances it
func (c *Channel) ReceiveUint64() uint64 {
	if len(c.state) < 8 {
		c.state = c.hash(c.state)
	}
	v := binary.BigEndian.Uint64(c.state[:8])
	c.log = append(c.log, fmt.Sprintf("receive:%d", v))
	c.state = c.hash(c.state)
	return v
}

// State returns the current channel state
func (c *Channel) State() []byte {
	return append([]byte(nil), c.state...)
}

// Hex returns the current state in hexadecimal
func (c *Channel) Hex() string {
	return hex.EncodeToString(c.state)
}

// Transcript returns the message log
func (c *Channel) Transcript() []string {
	return append([]string(nil), c.log...)
}

// HashFunction returns the configured hash function name
func (c *Channel) HashFunction() string {
	return c.hashFunc
}

// hash computes the hash of the input using the configured hash function
func (c *Channel) hash(data []byte) []byte {
	switch c.hashFunc {
	case "sha256":
		h := sha256.Sum256(data)
		return h[:]
	default:
		h := sha3.Sum256(data)
		return h[:]
	}
}

// String returns a string representation of the transcript
func (c *Channel) String() string {
	return strings.Join(c.log, " ")
}
