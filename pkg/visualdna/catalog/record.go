// Package catalog loads and saves reference catalogs: one row per video with
// its packed visual fingerprint and optional audio track id.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
)

// Column names understood in catalog headers.
const (
	ColFilename          = "filename"
	ColFingerprint       = "fingerprint"
	ColFingerprintVisual = "fingerprint_visual"
	ColAudioID           = "fingerprint_audio_id"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrDuplicate     = errors.New("duplicate filename")
	ErrNoFilename    = errors.New("empty filename")
)

// Record is a validated catalog row.
type Record struct {
	Filename    string
	Fingerprint fingerprint.Fingerprint
	AudioID     *string
	Source      string // where the row came from, e.g. a file name
	Row         int    // 1-based row in the source, header included; 0 when unknown
}

// Entry converts the record into a ranking input.
func (r Record) Entry() models.CatalogEntry {
	return models.CatalogEntry{Filename: r.Filename, Fingerprint: r.Fingerprint.Pack(), AudioID: r.AudioID}
}

// Video converts the record into a storable catalog row.
func (r Record) Video() models.Video {
	return models.Video{
		Filename:    r.Filename,
		Fingerprint: r.Fingerprint.Pack(),
		AudioID:     r.AudioID,
		FrameCount:  r.Fingerprint.Len(),
	}
}

// FromVideo builds a record from a stored row. A corrupt stored fingerprint
// is reported rather than dropped.
func FromVideo(v models.Video) (Record, error) {
	fp, err := fingerprint.Unpack(v.Fingerprint)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", v.Filename, err)
	}
	return Record{Filename: v.Filename, Fingerprint: fp, AudioID: v.AudioID}, nil
}

// Quarantined is a row that failed validation.
type Quarantined struct {
	Source   string `json:"source,omitempty"`
	Row      int    `json:"row"`
	Filename string `json:"filename"`
	Err      error  `json:"-"`
}

func (q Quarantined) Error() string {
	return fmt.Sprintf("%s row %d (%q): %v", q.Source, q.Row, q.Filename, q.Err)
}

func (q Quarantined) Unwrap() error { return q.Err }

// Result holds the accepted records in source order plus the rejects.
type Result struct {
	Records     []Record
	Quarantined []Quarantined
}

// Entries returns the accepted records as ranking inputs.
func (r *Result) Entries() []models.CatalogEntry {
	out := make([]models.CatalogEntry, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Entry()
	}
	return out
}

// Absent reports whether a cell holds no value. Spreadsheet exports write
// missing values as "nan", "none" or "null".
func Absent(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "none", "null", "<nil>":
		return true
	}
	return false
}

// columns maps the interesting headers to their index; -1 means absent.
type columns struct {
	filename, fingerprint, audioID int
}

func resolveColumns(header []string) (columns, error) {
	cols := columns{filename: -1, fingerprint: -1, audioID: -1}
	legacy := -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case ColFilename:
			cols.filename = i
		case ColFingerprintVisual:
			cols.fingerprint = i
		case ColFingerprint:
			legacy = i
		case ColAudioID:
			cols.audioID = i
		}
	}
	if cols.fingerprint < 0 {
		cols.fingerprint = legacy
	}
	if cols.filename < 0 {
		return cols, fmt.Errorf("%w: %q", ErrMissingColumn, ColFilename)
	}
	if cols.fingerprint < 0 {
		return cols, fmt.Errorf("%w: %q or %q", ErrMissingColumn, ColFingerprintVisual, ColFingerprint)
	}
	return cols, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// builder validates rows one at a time and keeps filenames unique.
type builder struct {
	source string
	seen   map[string]struct{}
	res    Result
}

func newBuilder(source string) *builder {
	return &builder{source: source, seen: make(map[string]struct{})}
}

func (b *builder) add(row int, filename, packed, audio string) {
	q := Quarantined{Source: b.source, Row: row, Filename: filename}
	if Absent(filename) {
		q.Err = ErrNoFilename
		b.res.Quarantined = append(b.res.Quarantined, q)
		return
	}
	if _, dup := b.seen[filename]; dup {
		q.Err = ErrDuplicate
		b.res.Quarantined = append(b.res.Quarantined, q)
		return
	}

	if Absent(packed) {
		packed = ""
	}
	fp, err := fingerprint.Unpack(packed)
	if err != nil {
		q.Err = err
		b.res.Quarantined = append(b.res.Quarantined, q)
		return
	}

	rec := Record{Filename: filename, Fingerprint: fp, Source: b.source, Row: row}
	if !Absent(audio) {
		a := strings.TrimSpace(audio)
		rec.AudioID = &a
	}
	b.seen[filename] = struct{}{}
	b.res.Records = append(b.res.Records, rec)
}

// fromRows validates a header row followed by data rows.
func fromRows(source string, rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %q (no header row)", ErrMissingColumn, ColFilename)
	}
	cols, err := resolveColumns(rows[0])
	if err != nil {
		return nil, err
	}

	b := newBuilder(source)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		b.add(i+2, cell(row, cols.filename), cell(row, cols.fingerprint), cell(row, cols.audioID))
	}
	return &b.res, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// header is the column layout written by every sink.
var header = []string{ColFilename, ColFingerprintVisual, ColAudioID}

func recordRow(r Record) []string {
	audio := ""
	if r.AudioID != nil {
		audio = *r.AudioID
	}
	return []string{r.Filename, r.Fingerprint.Pack(), audio}
}
