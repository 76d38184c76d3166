package game

// BPM change starting at a beat, used while converting beats to time.
type BPM struct {
	StartingBeat float64
	Value        float64
}
