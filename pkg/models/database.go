package models

// Couple is the stored value for an acoustic landmark bucket entry.
// AnchorTimeMs is the time (in ms) of the anchor peak in the source audio.
type Couple struct {
	TrackID      string // UUID of the audio track
	AnchorTimeMs uint32
}

// Match represents a candidate audio match returned by offset voting.
type Match struct {
	TrackID  string // UUID of the audio track
	OffsetMs int32  // dbAnchorTimeMs - queryAnchorTimeMs
	Count    int
}
