package visualdna

import (
	"context"

	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/catalog"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/storage"
)

type Service interface {
	Search(ctx context.Context, videoPath string, opts SearchOptions) (*models.SearchResult, error)
	SearchFingerprint(ctx context.Context, filename string, fp fingerprint.Fingerprint, audioID *string, opts SearchOptions) (*models.SearchResult, error)
	IndexVideo(ctx context.Context, videoPath string, opts IndexOptions) (*models.Video, error)
	IndexURL(ctx context.Context, url string, opts IndexOptions) (*models.Video, error)
	GetEntry(filename string) (*models.Video, error)
	ListEntries() ([]models.Video, error)
	DeleteEntry(filename string) error
	ImportCatalog(records []catalog.Record) (int, error)
	ExportCatalog() ([]catalog.Record, error)
	Stats() (storage.Stats, error)
	Close() error
}

// Storage is the catalog and acoustic index backend.
type Storage interface {
	UpsertVideos(videos []models.Video) error
	GetVideo(filename string) (*models.Video, error)
	ListVideos() ([]models.Video, error)
	DeleteVideo(filename string) error

	RegisterTrack(label string, durationMs int) (string, error)
	StoreLandmarks(buckets map[uint32][]models.Couple) error
	CouplesByHashes(hashes []uint32) (map[uint32][]models.Couple, error)
	LandmarkCount(trackID string) (int, error)
	DeleteTrack(trackID string) error

	Stats() (storage.Stats, error)
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// FrameOpener turns a video file into a stream of sampled frames.
type FrameOpener interface {
	Open(ctx context.Context, path string) (fingerprint.FrameSource, error)
	// Settings identifies the sampling parameters, for cache keys.
	Settings() string
}

// AudioLoader returns the mono soundtrack of a video. workDir is scratch
// space owned by the caller.
type AudioLoader func(ctx context.Context, videoPath, workDir string) (samples []float64, sampleRate int, err error)
