package classify

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/ouva/dermascan/internal/roi"
)

// EncodeJPEG compresses an RGB frame buffer into a JPEG payload for upload.
func EncodeJPEG(px roi.Pixels, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}

	img := image.NewRGBA(image.Rect(0, 0, px.Width, px.Height))
	for y := 0; y < px.Height; y++ {
		src := y * px.Width * 3
		dst := y * img.Stride
		for x := 0; x < px.Width; x++ {
			img.Pix[dst] = px.Data[src]
			img.Pix[dst+1] = px.Data[src+1]
			img.Pix[dst+2] = px.Data[src+2]
			img.Pix[dst+3] = 0xff
			src += 3
			dst += 4
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
