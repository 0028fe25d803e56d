package media

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Default preview area.
const (
	PreviewWidth  = 640
	PreviewHeight = 360
)

// Fit returns the rectangle a srcW x srcH image occupies when scaled to fit a
// boxW x boxH area with its aspect ratio kept, centered.
func Fit(srcW, srcH, boxW, boxH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || boxW <= 0 || boxH <= 0 {
		return image.Rectangle{}
	}
	scale := min(float64(boxW)/float64(srcW), float64(boxH)/float64(srcH))
	w := int(float64(srcW) * scale)
	h := int(float64(srcH) * scale)
	x := (boxW - w) / 2
	y := (boxH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

// Render scales src into a black boxW x boxH canvas following Fit.
func Render(src image.Image, boxW, boxH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, boxW, boxH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	if src == nil {
		return dst
	}

	sb := src.Bounds()
	target := Fit(sb.Dx(), sb.Dy(), boxW, boxH)
	if target.Empty() {
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, target, src, sb, draw.Src, nil)
	return dst
}
