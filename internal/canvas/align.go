package canvas

import "math"

// Alignment thresholds in canvas units.
const (
	SnapThreshold  = 6.0
	GuideTolerance = 1.0
)

// Rect is an item's bounding box in canvas space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Left() float64    { return r.X }
func (r Rect) Right() float64   { return r.X + r.Width }
func (r Rect) CenterX() float64 { return r.X + r.Width/2 }
func (r Rect) Top() float64     { return r.Y }
func (r Rect) Bottom() float64  { return r.Y + r.Height }
func (r Rect) CenterY() float64 { return r.Y + r.Height/2 }

// GuideType is the orientation of an alignment guide.
type GuideType string

const (
	GuideVertical   GuideType = "vertical"
	GuideHorizontal GuideType = "horizontal"
)

// Guide is a transient alignment line. Position is on the guide's own axis;
// Start and End span the perpendicular axis.
type Guide struct {
	Type     GuideType `json:"type"`
	Position float64   `json:"position"`
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
}

// Snap is the result of one alignment pass. X and Y are the snapped
// coordinates of the active rect, nil when nothing on that axis is in range.
type Snap struct {
	X      *float64 `json:"snapX"`
	Y      *float64 `json:"snapY"`
	Guides []Guide  `json:"guides"`
}

// anchor identifies one of the three reference values on an axis.
type anchor int

const (
	anchorStart anchor = iota
	anchorEnd
	anchorCenter
)

func (a anchor) isEdge() bool { return a != anchorCenter }

// anchors returns start, end and center for an axis.
func anchors(r Rect, vertical bool) [3]float64 {
	if vertical {
		return [3]float64{r.Left(), r.Right(), r.CenterX()}
	}
	return [3]float64{r.Top(), r.Bottom(), r.CenterY()}
}

// pairRank orders equally distant candidates: edge-to-edge first, then mixed
// edge/center, then center-to-center.
func pairRank(a, b anchor) int {
	rank := 0
	if !a.isEdge() {
		rank++
	}
	if !b.isEdge() {
		rank++
	}
	return rank
}

var allAnchors = []anchor{anchorStart, anchorEnd, anchorCenter}

// nearest finds the closest candidate on one axis and returns the offset to
// apply to the active rect. Strictly closer wins; on equal distance the lower
// pairRank wins; remaining ties keep the first one found.
func nearest(active Rect, others []Rect, vertical bool) (float64, bool) {
	return nearestFrom(active, others, vertical, allAnchors)
}

// nearestFrom is nearest restricted to the given anchors of the active rect.
func nearestFrom(active Rect, others []Rect, vertical bool, from []anchor) (float64, bool) {
	act := anchors(active, vertical)

	found := false
	bestDist := math.Inf(1)
	bestRank := 0
	var bestOffset float64

	for _, other := range others {
		oth := anchors(other, vertical)
		for _, ai := range from {
			for oi := anchorStart; oi <= anchorCenter; oi++ {
				diff := oth[oi] - act[ai]
				dist := math.Abs(diff)
				if dist >= SnapThreshold {
					continue
				}
				rank := pairRank(ai, oi)
				if !found || dist < bestDist || (dist == bestDist && rank < bestRank) {
					found = true
					bestDist = dist
					bestRank = rank
					bestOffset = diff
				}
			}
		}
	}
	return bestOffset, found
}

// guidesFor rebuilds the guide lines for the snapped rect on one axis.
func guidesFor(snapped Rect, others []Rect, vertical bool) []Guide {
	act := anchors(snapped, vertical)
	var guides []Guide
	for _, other := range others {
		oth := anchors(other, vertical)
		for ai := anchorStart; ai <= anchorCenter; ai++ {
			for oi := anchorStart; oi <= anchorCenter; oi++ {
				if math.Abs(act[ai]-oth[oi]) > GuideTolerance {
					continue
				}
				g := Guide{Position: oth[oi]}
				if vertical {
					g.Type = GuideVertical
					g.Start = math.Min(snapped.Top(), other.Top())
					g.End = math.Max(snapped.Bottom(), other.Bottom())
				} else {
					g.Type = GuideHorizontal
					g.Start = math.Min(snapped.Left(), other.Left())
					g.End = math.Max(snapped.Right(), other.Right())
				}
				guides = append(guides, g)
			}
		}
	}
	return guides
}

// ComputeSnap aligns active against others. The caller excludes the active
// item from others by index, never by geometry.
func ComputeSnap(active Rect, others []Rect) Snap {
	result := Snap{Guides: []Guide{}}
	if len(others) == 0 {
		return result
	}

	snapped := active
	if dx, ok := nearest(active, others, true); ok {
		x := active.X + dx
		result.X = &x
		snapped.X = x
	}
	if dy, ok := nearest(active, others, false); ok {
		y := active.Y + dy
		result.Y = &y
		snapped.Y = y
	}

	if result.X != nil {
		result.Guides = append(result.Guides, guidesFor(snapped, others, true)...)
	}
	if result.Y != nil {
		result.Guides = append(result.Guides, guidesFor(snapped, others, false)...)
	}
	return result
}

// OthersExcept returns every rect except the one at index skip.
func OthersExcept(rects []Rect, skip int) []Rect {
	others := make([]Rect, 0, len(rects))
	for i, r := range rects {
		if i == skip {
			continue
		}
		others = append(others, r)
	}
	return others
}
