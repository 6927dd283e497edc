package quantity

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/misu-units/misu/pkg/dimension"
)

// Serialized quantities keep only magnitude and dimension vector. The
// formatting context is process state and is never written or restored;
// bind a decoded quantity to a cache explicitly if it should render with
// rules.

var ErrBadEncoding = errors.New("quantity: malformed encoding")

type wireQuantity struct {
	Magnitude json.RawMessage    `json:"magnitude"`
	Dimension map[string]float64 `json:"dimension,omitempty"`
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	var (
		mag []byte
		err error
	)
	if q.mag.IsArray() {
		mag, err = json.Marshal(q.mag.Values())
	} else {
		mag, err = json.Marshal(q.mag.At(0))
	}
	if err != nil {
		return nil, fmt.Errorf("marshal magnitude: %w", err)
	}
	return json.Marshal(wireQuantity{Magnitude: mag, Dimension: q.dim.Map()})
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	var w wireQuantity
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	dim, err := dimension.New(w.Dimension)
	if err != nil {
		return err
	}

	raw := bytes.TrimSpace(w.Magnitude)
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing magnitude", ErrBadEncoding)
	}
	var mag Magnitude
	if raw[0] == '[' {
		var vs []float64
		if err := json.Unmarshal(raw, &vs); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEncoding, err)
		}
		mag = ArrayOf(vs)
	} else {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrBadEncoding, err)
		}
		mag = Scalar(v)
	}

	*q = Quantity{mag: mag, dim: dim}
	return nil
}

const (
	kindScalar byte = 0
	kindArray  byte = 1
)

// MarshalBinary writes a fixed little-endian layout: kind byte, seven
// exponents, element count, elements. Bit patterns are preserved exactly.
func (q Quantity) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	kind := kindScalar
	if q.mag.IsArray() {
		kind = kindArray
	}
	buf.WriteByte(kind)
	for _, e := range q.dim {
		binary.Write(&buf, binary.LittleEndian, math.Float64bits(e))
	}
	vs := q.mag.Values()
	binary.Write(&buf, binary.LittleEndian, uint32(len(vs)))
	for _, v := range vs {
		binary.Write(&buf, binary.LittleEndian, math.Float64bits(v))
	}
	return buf.Bytes(), nil
}

func (q *Quantity) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	kind, err := r.ReadByte()
	if err != nil || (kind != kindScalar && kind != kindArray) {
		return fmt.Errorf("%w: bad kind", ErrBadEncoding)
	}

	var dim dimension.Vector
	for i := range dim {
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return fmt.Errorf("%w: exponents: %v", ErrBadEncoding, err)
		}
		dim[i] = math.Float64frombits(bits)
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("%w: count: %v", ErrBadEncoding, err)
	}
	if kind == kindScalar && n != 1 {
		return fmt.Errorf("%w: scalar with %d elements", ErrBadEncoding, n)
	}
	if int(n)*8 != r.Len() {
		return fmt.Errorf("%w: expected %d elements", ErrBadEncoding, n)
	}
	vs := make([]float64, n)
	for i := range vs {
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return fmt.Errorf("%w: elements: %v", ErrBadEncoding, err)
		}
		vs[i] = math.Float64frombits(bits)
	}

	var mag Magnitude
	if kind == kindArray {
		mag = ArrayOf(vs)
	} else {
		mag = Scalar(vs[0])
	}
	*q = Quantity{mag: mag, dim: dim}
	return nil
}
