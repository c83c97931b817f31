package visualdna

import (
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/audio"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/rank"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/storage"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/video"
)

// Errors returned by the Service, re-exported so callers need a single import.
var (
	ErrDecodeFailure      = video.ErrDecodeFailure
	ErrEmptyTarget        = rank.ErrEmptyTarget
	ErrCorruptFingerprint = fingerprint.ErrCorruptFingerprint
	ErrAudioExtraction    = audio.ErrAudioExtraction
	ErrNotFound           = storage.ErrNotFound
)
