package model

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is a sentinel error with no additional information attached.
type Error struct{ string }

func (err Error) Error() string {
	return err.string
}

var (
	ErrInvalidTopology = Error{"model: layer sizes must have at least 2 entries, all > 0"}
	ErrInvalidOptions  = Error{"model: invalid training options"}
	ErrNoData          = Error{"model: no training data"}
	ErrBusy            = Error{"model: another operation is running on this network"}
	ErrNotTrained      = Error{"model: network is not trained"}

	ErrBadHeader          = Error{"model: not a network file (header mismatch)"}
	ErrUnsupportedVersion = Error{"model: unsupported network file version"}
	ErrMalformed          = Error{"model: malformed network file"}
)

// IsFormatError reports whether err came from decoding an invalid network stream, as opposed to
// an I/O failure opening or reading it.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrBadHeader) || errors.Is(err, ErrUnsupportedVersion) || errors.Is(err, ErrMalformed)
}

// SizeMismatchError documents a vector whose length disagrees with the width of the layer it is
// fed to or compared against.
type SizeMismatchError struct {
	Expected int
	Got      int
	What     string
}

func (err *SizeMismatchError) Error() string {
	return fmt.Sprintf("model: %s has length %d, expected %d", err.What, err.Got, err.Expected)
}
