package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Network file layout, all little-endian:
//
//	header        uvarint byte length + "PCM_NN"
//	version       int16 (1)
//	numEpochs     int32
//	miniBatchSize int32
//	learningRate  float32
//	layerCount    int32, then layerCount × int32 layer sizes
//	biasCount     int32, then per bias:   rows int32, cols int32, rows×cols float32 row-major
//	weightCount   int32, then per weight: rows int32, cols int32, rows×cols float32 row-major
//
// The length prefix of the header matches the 7-bit encoded length written by .NET's
// BinaryWriter, so files written by either side are interchangeable.
const (
	fileHeader  = "PCM_NN"
	fileVersion = 1

	maxHeaderLen  = 256
	maxLayers     = 1 << 10
	maxLayerWidth = 1 << 20
	maxParams     = 1 << 28
)

// Save writes the trained network to path, replacing any existing file only once the new one is
// complete. An untrained network writes nothing and returns ErrNotTrained.
func (n *Network) Save(path string) (err error) {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()

	if !n.Trained() {
		return ErrNotTrained
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create network file")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return errors.Wrap(err, "create network file")
	}
	bw := bufio.NewWriter(tmp)
	if _, err = n.writeTo(bw); err != nil {
		return errors.Wrapf(err, "write network file %s", path)
	}
	if err = bw.Flush(); err != nil {
		return errors.Wrapf(err, "write network file %s", path)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "close network file %s", path)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename network file to %s", path)
	}
	return nil
}

// WriteTo encodes the trained network to w. An untrained network writes nothing and returns
// ErrNotTrained.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	if err := n.acquire(); err != nil {
		return 0, err
	}
	defer n.release()

	if !n.Trained() {
		return 0, ErrNotTrained
	}
	return n.writeTo(w)
}

func (n *Network) writeTo(w io.Writer) (int64, error) {
	n.mu.RLock()
	numEpochs, miniBatchSize, learningRate := n.numEpochs, n.miniBatchSize, n.learningRate
	layerSizes := n.layerSizes
	n.mu.RUnlock()

	e := &encoder{w: w}
	e.string(fileHeader)
	e.int16(fileVersion)
	e.int32(numEpochs)
	e.int32(miniBatchSize)
	e.float32(learningRate)

	e.int32(len(layerSizes))
	for _, size := range layerSizes {
		e.int32(size)
	}

	e.int32(len(n.biases))
	for _, b := range n.biases {
		e.matrix(b)
	}
	e.int32(len(n.weights))
	for _, w := range n.weights {
		e.matrix(w)
	}
	return e.n, e.err
}

// Load replaces the network with the one stored at path. The network is only modified if the
// whole file decodes; a missing or unreadable file returns the wrapped I/O error, and an invalid
// file returns an error for which IsFormatError is true.
func (n *Network) Load(path string) error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open network file")
	}
	defer f.Close()

	if _, err := n.readFrom(bufio.NewReader(f)); err != nil {
		return errors.Wrapf(err, "load network file %s", path)
	}
	return nil
}

// ReadFrom decodes a network from r and replaces n with it, leaving n untouched on any error.
// If r does not implement io.ByteReader it is wrapped in a bufio.Reader, which may consume bytes
// past the end of the network data; pass a ByteReader to read further data from r afterwards.
// The returned count covers only the bytes decoded.
func (n *Network) ReadFrom(r io.Reader) (int64, error) {
	if err := n.acquire(); err != nil {
		return 0, err
	}
	defer n.release()
	return n.readFrom(r)
}

func (n *Network) readFrom(r io.Reader) (int64, error) {
	br, ok := r.(io.ByteReader)
	if !ok {
		buffered := bufio.NewReader(r)
		r, br = buffered, buffered
	}
	d := &decoder{r: r, br: br}

	header, err := d.header()
	if err != nil {
		return d.n, err
	}
	if header != fileHeader {
		return d.n, errors.Wrapf(ErrBadHeader, "got %q", header)
	}

	if v := d.int16(); d.err == nil && v != fileVersion {
		return d.n, errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}
	numEpochs := d.int32()
	miniBatchSize := d.int32()
	learningRate := d.float32()

	layerCount := d.int32()
	if d.err != nil {
		return d.n, d.err
	}
	if layerCount < 2 || layerCount > maxLayers {
		return d.n, errors.Wrapf(ErrMalformed, "layer count %d", layerCount)
	}
	layerSizes := make([]int, layerCount)
	params := 0
	for i := range layerSizes {
		layerSizes[i] = d.int32()
		if d.err != nil {
			return d.n, d.err
		}
		if layerSizes[i] <= 0 || layerSizes[i] > maxLayerWidth {
			return d.n, errors.Wrapf(ErrMalformed, "layer %d has size %d", i, layerSizes[i])
		}
		if i > 0 {
			params += layerSizes[i] * (layerSizes[i-1] + 1)
		}
	}
	if params > maxParams {
		return d.n, errors.Wrapf(ErrMalformed, "%d parameters exceeds limit", params)
	}

	biases := make([]*mat.VecDense, layerCount-1)
	if count := d.int32(); d.err == nil && count != len(biases) {
		return d.n, errors.Wrapf(ErrMalformed, "%d biases for %d layers", count, layerCount)
	}
	for i := range biases {
		data := d.matrix(layerSizes[i+1], 1, "bias", i)
		if d.err != nil {
			return d.n, d.err
		}
		biases[i] = mat.NewVecDense(layerSizes[i+1], data)
	}

	weights := make([]*mat.Dense, layerCount-1)
	if count := d.int32(); d.err == nil && count != len(weights) {
		return d.n, errors.Wrapf(ErrMalformed, "%d weights for %d layers", count, layerCount)
	}
	for i := range weights {
		data := d.matrix(layerSizes[i+1], layerSizes[i], "weight", i)
		if d.err != nil {
			return d.n, d.err
		}
		weights[i] = mat.NewDense(layerSizes[i+1], layerSizes[i], data)
	}
	if d.err != nil {
		return d.n, d.err
	}

	n.mu.Lock()
	n.layerSizes = layerSizes
	n.biases = biases
	n.weights = weights
	n.numEpochs = numEpochs
	n.miniBatchSize = miniBatchSize
	n.learningRate = learningRate
	n.trained = true
	n.status = Ready
	n.mu.Unlock()
	return d.n, nil
}

// encoder keeps the first write error and ignores everything after it.
type encoder struct {
	w   io.Writer
	n   int64
	err error
	buf [8]byte
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	m, err := e.w.Write(p)
	e.n += int64(m)
	e.err = err
}

func (e *encoder) string(s string) {
	l := binary.PutUvarint(e.buf[:], uint64(len(s)))
	e.write(e.buf[:l])
	e.write([]byte(s))
}

func (e *encoder) int16(v int) {
	binary.LittleEndian.PutUint16(e.buf[:2], uint16(int16(v)))
	e.write(e.buf[:2])
}

func (e *encoder) int32(v int) {
	binary.LittleEndian.PutUint32(e.buf[:4], uint32(int32(v)))
	e.write(e.buf[:4])
}

func (e *encoder) float32(v float64) {
	binary.LittleEndian.PutUint32(e.buf[:4], math.Float32bits(float32(v)))
	e.write(e.buf[:4])
}

func (e *encoder) matrix(m mat.Matrix) {
	rows, cols := m.Dims()
	e.int32(rows)
	e.int32(cols)
	data := make([]byte, 4*rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			binary.LittleEndian.PutUint32(data[4*(r*cols+c):], math.Float32bits(float32(m.At(r, c))))
		}
	}
	e.write(data)
}

// decoder keeps the first read error; reads after it return zero values. End of input is
// reported as ErrMalformed, other read failures are passed through.
type decoder struct {
	r   io.Reader
	br  io.ByteReader
	n   int64
	err error
	buf [8]byte

	// last error from the underlying ByteReader, to tell I/O failures from a bad varint
	byteErr error
}

func (d *decoder) ReadByte() (byte, error) {
	b, err := d.br.ReadByte()
	if err != nil {
		d.byteErr = err
		return b, err
	}
	d.n++
	return b, nil
}

func (d *decoder) fail(err error) {
	if d.err != nil {
		return
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		d.err = errors.WithStack(truncatedError{offset: d.n})
		return
	}
	d.err = errors.Wrap(err, "read network file")
}

// truncatedError reports a stream that ended early. It matches both ErrMalformed and
// io.ErrUnexpectedEOF.
type truncatedError struct {
	offset int64
}

func (err truncatedError) Error() string {
	return fmt.Sprintf("%s: truncated after %d bytes", ErrMalformed, err.offset)
}

func (err truncatedError) Is(target error) bool {
	return target == ErrMalformed || target == io.ErrUnexpectedEOF
}

func (d *decoder) read(p []byte) {
	if d.err != nil {
		return
	}
	m, err := io.ReadFull(d.r, p)
	d.n += int64(m)
	if err != nil {
		d.fail(err)
	}
}

// header reads the length-prefixed magic string. Anything that cannot be the magic, including a
// short or empty stream, is ErrBadHeader.
func (d *decoder) header() (string, error) {
	l, err := binary.ReadUvarint(d)
	if err != nil {
		if d.byteErr != nil && !errors.Is(d.byteErr, io.EOF) {
			return "", errors.Wrap(d.byteErr, "read network file")
		}
		return "", errors.Wrap(ErrBadHeader, "invalid length prefix")
	}
	if l > maxHeaderLen {
		return "", errors.Wrapf(ErrBadHeader, "header length %d", l)
	}
	p := make([]byte, l)
	if m, err := io.ReadFull(d.r, p); err != nil {
		d.n += int64(m)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", errors.Wrap(ErrBadHeader, "truncated header")
		}
		return "", errors.Wrap(err, "read network file")
	}
	d.n += int64(l)
	return string(p), nil
}

func (d *decoder) int16() int {
	d.read(d.buf[:2])
	if d.err != nil {
		return 0
	}
	return int(int16(binary.LittleEndian.Uint16(d.buf[:2])))
}

func (d *decoder) int32() int {
	d.read(d.buf[:4])
	if d.err != nil {
		return 0
	}
	return int(int32(binary.LittleEndian.Uint32(d.buf[:4])))
}

func (d *decoder) float32() float64 {
	d.read(d.buf[:4])
	if d.err != nil {
		return 0
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(d.buf[:4])))
}

// matrix reads one rows×cols block and checks its declared shape.
func (d *decoder) matrix(rows, cols int, what string, index int) []float64 {
	gotRows, gotCols := d.int32(), d.int32()
	if d.err != nil {
		return nil
	}
	if gotRows != rows || gotCols != cols {
		d.err = errors.Wrapf(ErrMalformed, "%s %d is %dx%d, expected %dx%d", what, index, gotRows, gotCols, rows, cols)
		return nil
	}
	raw := make([]byte, 4*rows*cols)
	d.read(raw)
	if d.err != nil {
		return nil
	}
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:])))
	}
	return data
}
