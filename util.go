package watermarkcore

import (
	"bytes"
	"image"
	"image/png"
)

// encodePNG renders img as PNG bytes, used to embed a mark inline in a
// SideInfo record's watermark_ref.image_base64.
func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	// PNG encoding of an in-memory image never fails.
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

// bytesReader adapts a byte slice to an io.Reader for image.Decode.
func bytesReader(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}
