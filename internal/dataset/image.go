package dataset

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"github.com/pkg/errors"
)

// ImageSide is the width and height of an MNIST image.
const ImageSide = 28

// ImageRecord decodes the PNG or JPEG at path into an unlabelled record of ImageSide×ImageSide
// pixels, sampled on a grid. Dark ink on a light background becomes high intensities, as in
// the MNIST data; transparent pixels count as background.
func ImageRecord(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, errors.Wrap(err, "open image")
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Record{}, errors.Wrapf(err, "decode image %s", path)
	}
	pixels, err := samplePixels(img, ImageSide)
	if err != nil {
		return Record{}, errors.Wrapf(err, "image %s", path)
	}
	return Record{Pixels: pixels}, nil
}

// samplePixels reads img on a side×side grid and returns inverted grey intensities, row-major.
func samplePixels(img image.Image, side int) ([]byte, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errors.New("empty image")
	}
	pixels := make([]byte, side*side)
	stepX := float64(width) / float64(side)
	stepY := float64(height) / float64(side)
	for gy := 0; gy < side; gy++ {
		for gx := 0; gx < side; gx++ {
			px := bounds.Min.X + int(math.Min(float64(width-1), float64(gx)*stepX))
			py := bounds.Min.Y + int(math.Min(float64(height-1), float64(gy)*stepY))
			r, g, b, a := img.At(px, py).RGBA()
			// composite the premultiplied colour over white
			bg := 0xffff - a
			r, g, b = r+bg, g+bg, b+bg
			lum := (19595*r + 38470*g + 7471*b + 1<<15) >> 24
			pixels[gy*side+gx] = 255 - byte(lum)
		}
	}
	return pixels, nil
}
