package dataset

import (
	GoMNIST "github.com/petar/GoMNIST"
	"github.com/pkg/errors"
)

// LoadIDX reads a gzipped IDX image file and its label file.
func LoadIDX(imagesPath, labelsPath string) ([]Record, error) {
	set, err := GoMNIST.ReadSet(imagesPath, labelsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read idx set %s", imagesPath)
	}
	if len(set.Images) != len(set.Labels) {
		return nil, errors.Errorf("dataset: %s has %d images but %s has %d labels", imagesPath, len(set.Images), labelsPath, len(set.Labels))
	}

	records := make([]Record, len(set.Images))
	for i, img := range set.Images {
		records[i] = Record{Pixels: []byte(img), Label: int(set.Labels[i])}
	}
	return records, nil
}

// LoadIDXDir discovers and loads the training and test sets below root.
func LoadIDXDir(root string) (train, test []Record, err error) {
	files, err := DiscoverIDX(root)
	if err != nil {
		return nil, nil, err
	}
	if train, err = LoadIDX(files.TrainImages, files.TrainLabels); err != nil {
		return nil, nil, err
	}
	if test, err = LoadIDX(files.TestImages, files.TestLabels); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}
