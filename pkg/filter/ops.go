package filter

import (
	"image"

	"github.com/disintegration/imaging"
)

// Tone curve parameters. Tonal keeps the grey ramp soft; noir pushes it
// towards black and white.
const (
	tonalContrast   = -12.0
	noirMidpoint    = 0.5
	noirSigmoidGain = 8.0
)

func tonal(src image.Image) (image.Image, error) {
	if !usable(src) {
		return nil, ErrNoOutput
	}
	return checked(imaging.AdjustContrast(imaging.Grayscale(src), tonalContrast))
}

func noir(src image.Image) (image.Image, error) {
	if !usable(src) {
		return nil, ErrNoOutput
	}
	return checked(imaging.AdjustSigmoid(imaging.Grayscale(src), noirMidpoint, noirSigmoidGain))
}

func invert(src image.Image) (image.Image, error) {
	if !usable(src) {
		return nil, ErrNoOutput
	}
	return checked(imaging.Invert(src))
}

func usable(img image.Image) bool {
	return img != nil && !img.Bounds().Empty()
}

func checked(out *image.NRGBA) (image.Image, error) {
	if out == nil || out.Bounds().Empty() {
		return nil, ErrNoOutput
	}
	return out, nil
}
