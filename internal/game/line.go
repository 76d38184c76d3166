package game

import (
	"math"
	"sort"
	"time"
)

// Keyframe pins the line transform at a point in chart time.
// Values between keyframes are interpolated linearly.
type Keyframe struct {
	Time     time.Duration
	X, Y     float64
	Rotation float64 // degrees, counter clockwise
	Opacity  float64
}

type Transform struct {
	X, Y     float64
	Rotation float64
	Opacity  float64
}

// Along projects the point onto the axis of the line and returns the signed
// distance from the line origin.
func (t Transform) Along(x, y float64) float64 {
	rad := t.Rotation * math.Pi / 180
	return (x-t.X)*math.Cos(rad) + (y-t.Y)*math.Sin(rad)
}

type Line struct {
	ID        int
	Keyframes []Keyframe
}

// StaticLine never moves.
func StaticLine(id int, x, y, rotation float64) Line {
	return Line{ID: id, Keyframes: []Keyframe{{X: x, Y: y, Rotation: rotation, Opacity: 1}}}
}

func (l *Line) sortKeyframes() {
	sort.SliceStable(l.Keyframes, func(i, j int) bool {
		return l.Keyframes[i].Time < l.Keyframes[j].Time
	})
}

// TransformAt evaluates the line at time t. Keyframes must be sorted.
func (l *Line) TransformAt(t time.Duration) Transform {
	kfs := l.Keyframes
	if len(kfs) == 0 {
		return Transform{Opacity: 1}
	}
	i := sort.Search(len(kfs), func(i int) bool { return kfs[i].Time > t })
	if i == 0 {
		return kfs[0].transform()
	}
	if i == len(kfs) {
		return kfs[len(kfs)-1].transform()
	}
	a, b := kfs[i-1], kfs[i]
	span := b.Time - a.Time
	if span <= 0 {
		return b.transform()
	}
	p := float64(t-a.Time) / float64(span)
	return Transform{
		X:        lerp(a.X, b.X, p),
		Y:        lerp(a.Y, b.Y, p),
		Rotation: lerp(a.Rotation, b.Rotation, p),
		Opacity:  lerp(a.Opacity, b.Opacity, p),
	}
}

func (k Keyframe) transform() Transform {
	return Transform{X: k.X, Y: k.Y, Rotation: k.Rotation, Opacity: k.Opacity}
}

func lerp(a, b, p float64) float64 {
	return a + (b-a)*p
}
