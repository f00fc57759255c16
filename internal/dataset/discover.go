package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
)

var idxRegexp = regexp.MustCompile(`^(train|t10k)-(images-idx3|labels-idx1)-ubyte\.gz$`)

// IDXFiles locates the four gzipped IDX files of the MNIST distribution.
type IDXFiles struct {
	TrainImages string
	TrainLabels string
	TestImages  string
	TestLabels  string
}

// DiscoverIDX searches root for the MNIST IDX files. When a name appears more than once the
// lexically first path wins.
func DiscoverIDX(root string) (IDXFiles, error) {
	found := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if idxRegexp.MatchString(d.Name()) {
			found[d.Name()] = append(found[d.Name()], path)
		}
		return nil
	})
	if err != nil {
		return IDXFiles{}, fmt.Errorf("discover idx files: %w", err)
	}

	pick := func(name string) (string, error) {
		paths := found[name]
		if len(paths) == 0 {
			return "", fmt.Errorf("discover idx files: %s not found under %s", name, root)
		}
		sort.Strings(paths)
		return paths[0], nil
	}

	var files IDXFiles
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"train-images-idx3-ubyte.gz", &files.TrainImages},
		{"train-labels-idx1-ubyte.gz", &files.TrainLabels},
		{"t10k-images-idx3-ubyte.gz", &files.TestImages},
		{"t10k-labels-idx1-ubyte.gz", &files.TestLabels},
	} {
		if *f.dst, err = pick(f.name); err != nil {
			return IDXFiles{}, err
		}
	}
	return files, nil
}
