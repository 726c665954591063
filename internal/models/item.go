package models

import (
	"strings"
	"time"
)

// ItemKind distinguishes image and video items.
type ItemKind string

const (
	KindImage ItemKind = "image"
	KindVideo ItemKind = "video"
)

// KindForMime maps a MIME type to an item kind; ok is false for anything that
// is neither an image nor a video.
func KindForMime(mimeType string) (ItemKind, bool) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage, true
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo, true
	}
	return "", false
}

// Item is one media card on a week's board. Position and size are whole
// canvas units; nil Width/Height means the card uses the default size.
type Item struct {
	ID        string    `json:"id" msgpack:"id"`
	WeekID    string    `json:"weekId" msgpack:"weekId"`
	MediaID   string    `json:"mediaId" msgpack:"mediaId"`
	Kind      ItemKind  `json:"kind" msgpack:"kind"`
	Name      string    `json:"name" msgpack:"name"`
	MimeType  string    `json:"mimeType" msgpack:"mimeType"`
	X         int       `json:"x" msgpack:"x"`
	Y         int       `json:"y" msgpack:"y"`
	Width     *int      `json:"width,omitempty" msgpack:"width,omitempty"`
	Height    *int      `json:"height,omitempty" msgpack:"height,omitempty"`
	Tags      []string  `json:"tags" msgpack:"tags"`
	Colors    []string  `json:"colors" msgpack:"colors"`
	Language  string    `json:"language,omitempty" msgpack:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
}

// Geometry is a committed position and optional size.
type Geometry struct {
	X      int  `json:"x"`
	Y      int  `json:"y"`
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`
}
