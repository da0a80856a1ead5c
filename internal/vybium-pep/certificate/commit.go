package certificate

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/merkle"
)

// Leaf tags
const (
	tagMetric uint64 = iota + 1
	tagRow
	tagLMI
	tagGram
	tagBound
	tagPadding
)

// Commitment is a Merkle root over the Tip5 digests of the certificate
// entries, one leaf per entry
type Commitment struct {
	Root   hash.Digest
	Leaves int
}

// Bytes returns the root as little-endian 64-bit limbs
func (c Commitment) Bytes() []byte {
	out := make([]byte, 0, len(c.Root)*8)
	for _, elem := range c.Root {
		out = binary.LittleEndian.AppendUint64(out, elem.Value())
	}
	return out
}

// Hex returns the root in hexadecimal
func (c Commitment) Hex() string {
	return hex.EncodeToString(c.Bytes())
}

// Commit builds the Merkle commitment of the certificate. Any change of a
// name, weight or multiplier entry changes the root.
func (c *Certificate) Commit() (Commitment, error) {
	var leaves []hash.Digest

	bound := newEncoder(tagBound)
	bound.float(c.Bound)
	bound.float(c.Primal)
	leaves = append(leaves, bound.digest())

	for _, t := range c.Metrics {
		e := newEncoder(tagMetric)
		e.str(t.Name)
		e.float(t.Weight)
		leaves = append(leaves, e.digest())
	}
	for _, t := range c.Rows {
		e := newEncoder(tagRow)
		e.str(t.Name)
		e.word(uint64(t.Kind))
		e.float(t.Weight)
		leaves = append(leaves, e.digest())
	}
	for _, l := range c.LMIs {
		e := newEncoder(tagLMI)
		e.str(l.Name)
		n := l.Weight.SymmetricDim()
		e.word(uint64(n))
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				e.float(l.Weight.At(i, j))
			}
		}
		leaves = append(leaves, e.digest())
	}
	if c.Gram != nil {
		e := newEncoder(tagGram)
		n := c.Gram.SymmetricDim()
		e.word(uint64(n))
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				e.float(c.Gram.At(i, j))
			}
		}
		leaves = append(leaves, e.digest())
	}

	count := len(leaves)
	// The tree is built over a power-of-two number of leaves
	padding := newEncoder(tagPadding).digest()
	for len(leaves)&(len(leaves)-1) != 0 {
		leaves = append(leaves, padding)
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		return Commitment{}, fmt.Errorf("failed to create Merkle tree: %w", err)
	}
	return Commitment{Root: tree.Root(), Leaves: count}, nil
}

// encoder packs a leaf into Goldilocks field elements. Floats are split into
// 32-bit halves so that every bit pattern maps to a distinct element.
type encoder struct {
	elems []field.Element
}

func newEncoder(tag uint64) *encoder {
	return &encoder{elems: []field.Element{field.New(tag)}}
}

func (e *encoder) word(v uint64) {
	e.elems = append(e.elems, field.New(v>>32), field.New(v&0xffffffff))
}

func (e *encoder) float(v float64) {
	if v == 0 {
		v = 0
	}
	e.word(math.Float64bits(v))
}

func (e *encoder) str(s string) {
	e.word(uint64(len(s)))
	for i := 0; i < len(s); i += 4 {
		var chunk uint64
		for k := i; k < i+4 && k < len(s); k++ {
			chunk = chunk<<8 | uint64(s[k])
		}
		e.elems = append(e.elems, field.New(chunk))
	}
}

func (e *encoder) digest() hash.Digest {
	// Pad to multiple of 10 for Tip5
	for len(e.elems)%10 != 0 {
		e.elems = append(e.elems, field.Zero)
	}
	return hash.HashVarlen(e.elems)
}
