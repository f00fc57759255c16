package trainer

import (
	"log"

	"github.com/pkg/errors"

	"mnist-forge/internal/dataset"
	"mnist-forge/internal/model"
)

// Classify loads the network stored at modelPath and returns the class it predicts for the
// image at imagePath. The network input must be one 28×28 image.
func Classify(modelPath, imagePath string) (int, error) {
	net, err := model.New([]int{dataset.ImageWidth, 1}, nil)
	if err != nil {
		return 0, err
	}
	if err := net.Load(modelPath); err != nil {
		return 0, err
	}
	if in := net.LayerSizes()[0]; in != dataset.ImageWidth {
		return 0, errors.Errorf("trainer: model %s takes %d inputs, images have %d pixels", modelPath, in, dataset.ImageWidth)
	}

	rec, err := dataset.ImageRecord(imagePath)
	if err != nil {
		return 0, err
	}
	samples, err := dataset.TestSamples([]dataset.Record{rec})
	if err != nil {
		return 0, err
	}
	out, err := net.Feedforward(samples[0].Input)
	if err != nil {
		return 0, err
	}

	predicted := model.ArgMax(out)
	log.Printf("image=%s predicted=%d activation=%.4f", imagePath, predicted, out.AtVec(predicted))
	return predicted, nil
}
