package g2d

import (
	"image"
	"math"
)

// Letterbox returns the largest rectangle inside a dstW×dstH image that
// has the aspect ratio of a srcW×srcH source, centered. Use it as the
// destination clip of a scaling blit after clearing the borders.
// Non-positive dimensions yield the empty rectangle.
func Letterbox(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}
	srcAspect := float64(srcW) / float64(srcH)
	dstAspect := float64(dstW) / float64(dstH)

	w, h := dstW, dstH
	if srcAspect > dstAspect {
		h = int(math.Round(float64(dstW) / srcAspect))
	} else {
		w = int(math.Round(float64(dstH) * srcAspect))
	}
	left := (dstW - w) / 2
	top := (dstH - h) / 2
	return image.Rect(left, top, left+w, top+h)
}
