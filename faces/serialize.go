package faces

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
)

// dlib float_details markers for non finite values
const (
	expInf    = 32000
	expNegInf = 32001
	expNaN    = 32002
)

var errTextFloat = errors.New("text encoded floats are not supported")

// dlibReader decodes dlib's portable binary serialization. The first error is
// sticky: every later read returns zero values and the error is reported by Err.
type dlibReader struct {
	r   *bufio.Reader
	err error
}

func newDlibReader(r io.Reader) *dlibReader {
	return &dlibReader{r: bufio.NewReader(r)}
}

func (d *dlibReader) Err() error {
	return d.err
}

func (d *dlibReader) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

// packed reads a control byte (low nibble: byte count, 0x80: negative) followed
// by the little endian magnitude.
func (d *dlibReader) packed() (magnitude uint64, negative bool) {
	if d.err != nil {
		return 0, false
	}
	ctrl, err := d.r.ReadByte()
	if err != nil {
		d.fail(fmt.Errorf("read integer: %w", err))
		return 0, false
	}
	size := int(ctrl & 0x0F)
	if size > 8 {
		d.fail(fmt.Errorf("integer of %d bytes", size))
		return 0, false
	}
	var buf [8]byte
	if _, err = io.ReadFull(d.r, buf[:size]); err != nil {
		d.fail(fmt.Errorf("read integer: %w", err))
		return 0, false
	}
	for i := size - 1; i >= 0; i-- {
		magnitude = magnitude<<8 | uint64(buf[i])
	}
	return magnitude, ctrl&0x80 != 0
}

func (d *dlibReader) int64() int64 {
	m, neg := d.packed()
	if neg {
		return -int64(m)
	}
	return int64(m)
}

func (d *dlibReader) uint64() uint64 {
	m, neg := d.packed()
	if neg {
		d.fail(errors.New("negative value for an unsigned integer"))
		return 0
	}
	return m
}

// length reads a container size and rejects values that cannot be right.
func (d *dlibReader) length() int {
	n := d.uint64()
	if n > 1<<26 {
		d.fail(fmt.Errorf("container of %d elements", n))
		return 0
	}
	return int(n)
}

// float32 reads a float stored as mantissa and exponent integers.
func (d *dlibReader) float32() float32 {
	if d.err != nil {
		return 0
	}
	b, err := d.r.Peek(1)
	if err != nil {
		d.fail(fmt.Errorf("read float: %w", err))
		return 0
	}
	if b[0]&0x70 != 0 {
		d.fail(errTextFloat)
		return 0
	}
	mantissa := d.int64()
	exponent := d.int64()
	switch exponent {
	case expInf:
		return float32(math.Inf(1))
	case expNegInf:
		return float32(math.Inf(-1))
	case expNaN:
		return float32(math.NaN())
	}
	return float32(math.Ldexp(float64(mantissa), int(exponent)))
}

// matrix reads a dlib matrix in row major order. Negative dimensions mark the
// current format and are flipped.
func (d *dlibReader) matrix() (data []float32, rows, cols int) {
	nr := d.int64()
	nc := d.int64()
	if nr < 0 || nc < 0 {
		nr, nc = -nr, -nc
	}
	if nr*nc > 1<<24 {
		d.fail(fmt.Errorf("matrix of %dx%d", nr, nc))
		return nil, 0, 0
	}
	data = make([]float32, 0, nr*nc)
	for i := int64(0); i < nr*nc && d.err == nil; i++ {
		data = append(data, d.float32())
	}
	return data, int(nr), int(nc)
}

func (d *dlibReader) columnVector() []float32 {
	data, _, cols := d.matrix()
	if d.err == nil && cols != 1 && len(data) > 0 {
		d.fail(fmt.Errorf("expected a column vector, got %d columns", cols))
	}
	return data
}

func (d *dlibReader) point() [2]float32 {
	return [2]float32{d.float32(), d.float32()}
}
