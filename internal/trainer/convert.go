package trainer

import (
	"os"

	"github.com/pkg/errors"

	"mnist-forge/internal/dataset"
)

// Convert rewrites the gzipped IDX files found under dataDir as the headerless record files
// read by the records format.
func Convert(dataDir, trainOut, testOut string) error {
	train, test, err := dataset.LoadIDXDir(dataDir)
	if err != nil {
		return err
	}
	if err := writeRecordFile(trainOut, train); err != nil {
		return err
	}
	return writeRecordFile(testOut, test)
}

func writeRecordFile(path string, records []dataset.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create record file")
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.Wrap(cerr, "close record file")
		}
	}()
	return dataset.WriteRecords(f, records)
}
