package dataset

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"mnist-forge/internal/model"
)

// pixelScale maps a byte intensity into [0,1).
const pixelScale = 256.0

// ErrEmptyRecord indicates a record without pixels.
var ErrEmptyRecord = errors.New("dataset: record has no pixels")

// vectorize converts non-empty pixels into a normalised column vector.
func vectorize(pixels []byte) *mat.VecDense {
	data := make([]float64, len(pixels))
	for i, p := range pixels {
		data[i] = float64(p) / pixelScale
	}
	return mat.NewVecDense(len(data), data)
}

// TrainingSamples converts records into input vectors with one-hot targets of length classes.
func TrainingSamples(records []Record, classes int) ([]model.Sample, error) {
	if classes <= 0 {
		return nil, errors.Errorf("dataset: classes must be > 0 (got %d)", classes)
	}
	samples := make([]model.Sample, len(records))
	for i, rec := range records {
		if len(rec.Pixels) == 0 {
			return nil, errors.Wrapf(ErrEmptyRecord, "record %d", i)
		}
		if rec.Label < 0 || rec.Label >= classes {
			return nil, errors.Errorf("dataset: record %d has label %d outside [0,%d)", i, rec.Label, classes)
		}
		target := mat.NewVecDense(classes, nil)
		target.SetVec(rec.Label, 1)
		samples[i] = model.Sample{Input: vectorize(rec.Pixels), Target: target}
	}
	return samples, nil
}

// TestSamples converts records into input vectors paired with their labels.
func TestSamples(records []Record) ([]model.LabeledSample, error) {
	samples := make([]model.LabeledSample, len(records))
	for i, rec := range records {
		if len(rec.Pixels) == 0 {
			return nil, errors.Wrapf(ErrEmptyRecord, "record %d", i)
		}
		samples[i] = model.LabeledSample{Input: vectorize(rec.Pixels), Label: rec.Label}
	}
	return samples, nil
}
