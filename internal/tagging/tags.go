// Package tagging asks an AI vision endpoint for descriptive tags. To the rest
// of the service it is opaque: media bytes and a language in, tags out.
package tagging

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnavailable is returned while the endpoint is considered down.
var ErrUnavailable = errors.New("tagging unavailable")

// Tagger produces tags for a media blob.
type Tagger interface {
	Tag(ctx context.Context, media []byte, mimeType, language string) ([]string, error)
}

// Nop is the tagger used when tagging is disabled. It never tags anything.
type Nop struct{}

func (Nop) Tag(context.Context, []byte, string, string) ([]string, error) { return nil, nil }

// ParseTags extracts tags from a model reply. A JSON array of strings is
// preferred; otherwise the text is split on commas and newlines.
func ParseTags(content string) []string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	if start, end := strings.Index(content, "["), strings.LastIndex(content, "]"); start >= 0 && end > start {
		var tags []string
		if err := json.Unmarshal([]byte(content[start:end+1]), &tags); err == nil {
			return tags
		}
	}

	fields := strings.FieldsFunc(content, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})
	tags := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimLeft(strings.TrimSpace(f), "-*• ")
		f = strings.Trim(f, `"'[]. `)
		if f != "" {
			tags = append(tags, f)
		}
	}
	return tags
}

// Normalize trims, lower-cases and de-duplicates tags, keeping the first
// max in order.
func Normalize(tags []string, max int) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}
