package engine

import (
	"bytes"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"

	"github.com/formbench/formbench/internal/domain/model"
	"github.com/formbench/formbench/internal/support/exception"
)

// DecodeImage decodes PNG or JPEG document bytes.
func DecodeImage(imageData []byte) (image.Image, error) {
	src, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, exception.NewAppError(moduleName, "failed to decode document image", err, exception.KindAdapter)
	}
	return src, nil
}

// Crop cuts a layout bounding box out of the image and re-encodes it as
// PNG, for adapters that can only OCR whole images.
func Crop(src image.Image, bbox model.BoundingBox) ([]byte, error) {
	rect := image.Rect(bbox.X1, bbox.Y1, bbox.X2, bbox.Y2).Intersect(src.Bounds())
	if rect.Empty() {
		return nil, exception.NewAppErrorf(moduleName, exception.KindAdapter,
			"layout region [%d,%d,%d,%d] lies outside the image", bbox.X1, bbox.Y1, bbox.X2, bbox.Y2)
	}

	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), src, rect.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, exception.NewAppError(moduleName, "failed to encode cropped region", err, exception.KindAdapter)
	}
	return buf.Bytes(), nil
}
