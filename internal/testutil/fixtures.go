package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// PNG returns a small encoded PNG filled with c.
func PNG(c color.Color) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
