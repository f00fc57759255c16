package dataset

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Record is one labelled image: Width pixel intensities (0-255) and a class label.
type Record struct {
	Pixels []byte
	Label  int
}

// ImageWidth is the number of pixels in an MNIST record (28×28).
const ImageWidth = 784

// ErrPartialRecord indicates the file ended in the middle of a record.
var ErrPartialRecord = errors.New("dataset: file ends with a partial record")

// StreamRecords streams fixed-size records from the file at path. Each record is width pixel
// bytes followed by one label byte; there is no header. The error channel receives at most one
// error and is closed after the record channel.
func StreamRecords(ctx context.Context, path string, width int) (<-chan Record, <-chan error) {
	out := make(chan Record)
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		defer close(out)

		if width <= 0 {
			errCh <- errors.Errorf("dataset: record width must be > 0 (got %d)", width)
			return
		}

		f, err := os.Open(path)
		if err != nil {
			errCh <- errors.Wrap(err, "open records")
			return
		}
		defer f.Close()

		r := bufio.NewReader(f)
		for index := 0; ; index++ {
			buf := make([]byte, width+1)
			n, err := io.ReadFull(r, buf)
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				errCh <- errors.Wrapf(ErrPartialRecord, "%s: record %d has %d of %d bytes", path, index, n, width+1)
				return
			}
			if err != nil {
				errCh <- errors.Wrapf(err, "read record %d", index)
				return
			}

			rec := Record{Pixels: buf[:width], Label: int(buf[width])}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- rec:
			}
		}
	}()

	return out, errCh
}

// ReadRecords collects every record of the file at path.
func ReadRecords(ctx context.Context, path string, width int) ([]Record, error) {
	stream, errCh := StreamRecords(ctx, path, width)
	var records []Record
	for rec := range stream {
		records = append(records, rec)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return records, nil
}

// WriteRecords writes records in the format read by StreamRecords.
func WriteRecords(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for i, rec := range records {
		if rec.Label < 0 || rec.Label > 255 {
			return errors.Errorf("dataset: record %d label %d does not fit in a byte", i, rec.Label)
		}
		if _, err := bw.Write(rec.Pixels); err != nil {
			return errors.Wrapf(err, "write record %d", i)
		}
		if err := bw.WriteByte(byte(rec.Label)); err != nil {
			return errors.Wrapf(err, "write record %d", i)
		}
	}
	return errors.Wrap(bw.Flush(), "flush records")
}
