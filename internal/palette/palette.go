// Package palette extracts the dominant colours of an image.
package palette

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sort"

	_ "golang.org/x/image/webp"
)

// ErrUnsupportedMedia is returned for blobs that are not decodable images.
var ErrUnsupportedMedia = errors.New("unsupported media for palette extraction")

// DefaultSize is the number of colours returned when n <= 0.
const DefaultSize = 5

// maxSamples bounds the pixels inspected per image.
const maxSamples = 40000

type bucket struct {
	key   uint16
	count int
	r, g  int
	b     int
}

// Extract decodes an image and returns up to n hex colours ("#rrggbb"),
// most frequent first. Pixels are quantised to 4 bits per channel; fully
// transparent pixels are ignored. Each colour is the mean of its bucket.
func Extract(r io.Reader, n int) ([]string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedMedia
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return FromImage(img, n), nil
}

// FromImage computes the palette of an already decoded image.
func FromImage(img image.Image, n int) []string {
	if n <= 0 {
		n = DefaultSize
	}
	bounds := img.Bounds()
	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return []string{}
	}
	stride := 1
	for total/(stride*stride) > maxSamples {
		stride++
	}

	buckets := make(map[uint16]*bucket)
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			// un-premultiply, then 16-bit to 8-bit
			r8 := int(r * 0xffff / a >> 8)
			g8 := int(g * 0xffff / a >> 8)
			b8 := int(b * 0xffff / a >> 8)
			key := uint16(r8>>4)<<8 | uint16(g8>>4)<<4 | uint16(b8>>4)
			bk, ok := buckets[key]
			if !ok {
				bk = &bucket{key: key}
				buckets[key] = bk
			}
			bk.count++
			bk.r += r8
			bk.g += g8
			bk.b += b8
		}
	}

	type entry struct {
		hex   string
		count int
	}
	entries := make([]entry, 0, len(buckets))
	for _, bk := range buckets {
		entries = append(entries, entry{
			hex:   fmt.Sprintf("#%02x%02x%02x", bk.r/bk.count, bk.g/bk.count, bk.b/bk.count),
			count: bk.count,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].hex < entries[j].hex
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.hex
	}
	return out
}
