// Package visualdna finds the catalog videos most similar to a target video,
// combining a perceptual frame fingerprint with an optional soundtrack match.
package visualdna

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/VisualDNA/pkg/logger"
	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/utils"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/acoustic"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/cache"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/catalog"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/fingerprint"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/metrics"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/rank"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/storage"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/video"
)

// SearchOptions tunes one search. Zero values fall back to the config.
type SearchOptions struct {
	// Filename is the target's catalog name, used to exclude the target
	// from its own results. Defaults to the base name of the video path.
	Filename string
	Weights  *models.Weights
	TopK     int
	Progress fingerprint.ProgressFunc
	NoCache  bool
}

// IndexOptions tunes one indexing run.
type IndexOptions struct {
	// Filename is the catalog key. Defaults to the base name of the video path.
	Filename  string
	SourceURL string
	Progress  fingerprint.ProgressFunc
	NoCache   bool
}

// visualService is the default implementation of the Service interface.
type visualService struct {
	storage Storage
	log     Logger
	config  *Config
	frames  FrameOpener
	audios  AudioLoader
	ident   *acoustic.Identifier
	cache   *cache.Store
}

// analysis is what decoding one video produced.
type analysis struct {
	fp         fingerprint.Fingerprint
	audioID    *string
	durationMs int
}

func NewService(opts ...Option) (Service, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.Frames == nil {
		cfg.Frames = NewSamplerOpener(cfg.Fingerprint)
	}
	if cfg.Audios == nil {
		cfg.Audios = NewFFmpegAudioLoader(cfg.Audio)
	}

	stor := cfg.Store
	if stor == nil {
		var err error
		stor, err = NewSQLiteStorage(cfg.Storage.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	s := &visualService{
		storage: stor,
		log:     cfg.Logger,
		config:  &cfg,
		frames:  cfg.Frames,
		audios:  cfg.Audios,
		ident: acoustic.NewIdentifier(stor, acoustic.Config{
			MinConfidence: cfg.Audio.MinConfidence,
			MinVotes:      cfg.Audio.MinVotes,
		}),
	}

	if cfg.Cache.Dir != "" {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		c, err := cache.Open(cfg.Cache.Dir, ttl)
		if err != nil {
			s.log.Warnf("Fingerprint cache disabled: %v", err)
		} else {
			s.cache = c
		}
	}

	return s, nil
}

// Search fingerprints the video at videoPath and ranks the catalog against
// it. Every temporary file it creates is removed before it returns.
func (s *visualService) Search(ctx context.Context, videoPath string, opts SearchOptions) (res *models.SearchResult, err error) {
	start := time.Now()
	var scored, skipped int
	defer func() {
		metrics.ObserveSearch(outcome(err), time.Since(start), scored, skipped)
	}()

	if err := s.weights(opts).Validate(); err != nil {
		return nil, err
	}

	name := opts.Filename
	if name == "" {
		name = filepath.Base(videoPath)
	}
	s.log.Infof("Searching for matches of %s", name)

	ws, err := utils.NewWorkspace(s.config.Storage.TempDir, "visualdna-search-")
	if err != nil {
		return nil, err
	}
	defer s.release(ws)

	a, err := s.analyze(ctx, videoPath, ws, opts.Progress, opts.NoCache, "")
	if err != nil {
		return nil, err
	}

	res, ranking, err := s.rankCatalog(ctx, name, a.fp, a.audioID, opts)
	if err != nil {
		return nil, err
	}
	scored, skipped = ranking.Scored, len(ranking.Skipped)
	res.Elapsed = time.Since(start)
	return res, nil
}

// SearchFingerprint ranks the catalog against an already computed
// fingerprint.
func (s *visualService) SearchFingerprint(ctx context.Context, filename string, fp fingerprint.Fingerprint, audioID *string, opts SearchOptions) (res *models.SearchResult, err error) {
	start := time.Now()
	var scored, skipped int
	defer func() {
		metrics.ObserveSearch(outcome(err), time.Since(start), scored, skipped)
	}()

	if filename == "" {
		filename = opts.Filename
	}
	res, ranking, err := s.rankCatalog(ctx, filename, fp, audioID, opts)
	if err != nil {
		return nil, err
	}
	scored, skipped = ranking.Scored, len(ranking.Skipped)
	res.Elapsed = time.Since(start)
	return res, nil
}

func (s *visualService) weights(opts SearchOptions) models.Weights {
	if opts.Weights != nil {
		return *opts.Weights
	}
	return models.WeightsFromVisual(s.config.Search.VisualWeight)
}

func (s *visualService) rankCatalog(ctx context.Context, name string, fp fingerprint.Fingerprint, audioID *string, opts SearchOptions) (*models.SearchResult, *rank.Ranking, error) {
	videos, err := s.storage.ListVideos()
	if err != nil {
		return nil, nil, fmt.Errorf("loading catalog: %w", err)
	}
	entries := make([]models.CatalogEntry, len(videos))
	for i, v := range videos {
		entries[i] = v.Entry()
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.config.Search.TopK
	}

	ranking, err := rank.Rank(ctx, rank.SearchRequest{
		TargetFilename:    name,
		TargetFingerprint: fp,
		TargetAudioID:     audioID,
		Catalog:           entries,
		Weights:           s.weights(opts),
		TopK:              topK,
		Workers:           s.config.Search.Workers,
	})
	if err != nil {
		return nil, nil, err
	}

	for _, sk := range ranking.Skipped {
		s.log.Warnf("Skipped catalog entry %s: %s", sk.Filename, sk.Reason)
	}
	s.log.Infof("Scored %d catalog entries for %s, returning %d", ranking.Scored, name, len(ranking.Results))

	return &models.SearchResult{
		TargetFilename: name,
		FrameCount:     fp.Len(),
		AudioID:        audioID,
		Results:        ranking.Results,
		Skipped:        ranking.Skipped,
	}, ranking, nil
}

// IndexVideo fingerprints a video, registers its soundtrack and upserts it
// into the catalog.
func (s *visualService) IndexVideo(ctx context.Context, videoPath string, opts IndexOptions) (*models.Video, error) {
	ws, err := utils.NewWorkspace(s.config.Storage.TempDir, "visualdna-index-")
	if err != nil {
		return nil, err
	}
	defer s.release(ws)
	return s.index(ctx, videoPath, ws, opts)
}

// IndexURL downloads a video and indexes it. The download lives only as
// long as the call.
func (s *visualService) IndexURL(ctx context.Context, url string, opts IndexOptions) (*models.Video, error) {
	ws, err := utils.NewWorkspace(s.config.Storage.TempDir, "visualdna-download-")
	if err != nil {
		return nil, err
	}
	defer s.release(ws)

	s.log.Infof("Downloading %s", url)
	dl, err := video.DownloadURL(ctx, url, ws.Dir)
	if err != nil {
		return nil, err
	}
	if opts.SourceURL == "" {
		opts.SourceURL = url
		if dl.WebpageURL != "" {
			opts.SourceURL = dl.WebpageURL
		}
	}
	return s.index(ctx, dl.Path, ws, opts)
}

func (s *visualService) index(ctx context.Context, videoPath string, ws *utils.Workspace, opts IndexOptions) (*models.Video, error) {
	name := opts.Filename
	if name == "" {
		name = filepath.Base(videoPath)
	}
	s.log.Infof("Indexing %s", name)

	a, err := s.analyze(ctx, videoPath, ws, opts.Progress, opts.NoCache, name)
	if err != nil {
		return nil, err
	}
	if a.fp.Empty() {
		return nil, fmt.Errorf("indexing %s: %w", name, rank.ErrEmptyTarget)
	}

	v := models.Video{
		Filename:    name,
		Fingerprint: a.fp.Pack(),
		AudioID:     a.audioID,
		FrameCount:  a.fp.Len(),
		DurationMs:  a.durationMs,
		SourceURL:   opts.SourceURL,
	}
	if err := s.storage.UpsertVideos([]models.Video{v}); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", name, err)
	}
	metrics.IndexedTotal.Inc()

	s.log.Infof("Indexed %s: %d frames, audio=%s", name, v.FrameCount, audioLabel(v.AudioID))
	return s.storage.GetVideo(name)
}

// analyze produces the fingerprint and audio id of a video. A non-empty
// register label stores unknown soundtracks; otherwise audio is only looked
// up. Audio problems never fail the call.
func (s *visualService) analyze(ctx context.Context, videoPath string, ws *utils.Workspace, progress fingerprint.ProgressFunc, noCache bool, register string) (*analysis, error) {
	var key uint64
	useCache := s.cache != nil && !noCache
	if useCache {
		k, err := cache.FileKey(videoPath, s.cacheSettings())
		if err != nil {
			s.log.Debugf("Cache key for %s: %v", videoPath, err)
			useCache = false
		} else {
			key = k
		}
	}

	var a *analysis
	audioTried := false
	if useCache {
		a, audioTried = s.fromCache(key)
	}

	if a == nil {
		fp, durationMs, err := s.fingerprintVideo(ctx, videoPath, progress)
		if err != nil {
			return nil, err
		}
		a = &analysis{fp: fp, durationMs: durationMs}
	}

	if !audioTried && s.config.Audio.Enabled {
		a.audioID = s.audioID(ctx, videoPath, ws, register)
		audioTried = true
	}

	if useCache {
		err := s.cache.Put(key, cache.Entry{
			Fingerprint: a.fp.Pack(),
			AudioID:     a.audioID,
			AudioTried:  audioTried,
			DurationMs:  a.durationMs,
		})
		if err != nil {
			s.log.Warnf("Caching fingerprint of %s: %v", videoPath, err)
		}
	}
	return a, nil
}

// fromCache returns the cached analysis for key, or nil on a miss. The
// second result reports whether the cached audio id can be used as is; a
// cached miss is retried since the acoustic index may have grown.
func (s *visualService) fromCache(key uint64) (*analysis, bool) {
	e, ok, err := s.cache.Get(key)
	if err != nil {
		s.log.Warnf("Reading fingerprint cache: %v", err)
		return nil, false
	}
	if !ok {
		metrics.CacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	fp, err := fingerprint.Unpack(e.Fingerprint)
	if err != nil {
		s.log.Warnf("Dropping corrupt cache entry: %v", err)
		_ = s.cache.Delete(key)
		metrics.CacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheTotal.WithLabelValues("hit").Inc()

	return &analysis{fp: fp, audioID: e.AudioID, durationMs: e.DurationMs}, e.AudioID != nil
}

func (s *visualService) cacheSettings() string {
	return fmt.Sprintf("%s;hasher=%s;audio=%d", s.frames.Settings(), s.config.Fingerprint.Hasher, s.config.Audio.SampleRate)
}

func (s *visualService) fingerprintVideo(ctx context.Context, videoPath string, progress fingerprint.ProgressFunc) (fingerprint.Fingerprint, int, error) {
	hasher, err := fingerprint.NewHasher(s.config.Fingerprint.Hasher)
	if err != nil {
		return nil, 0, err
	}

	src, err := s.frames.Open(ctx, videoPath)
	if err != nil {
		return nil, 0, err
	}
	defer src.Close()

	durationMs := 0
	if stream, ok := src.(*video.FrameStream); ok && stream.Meta != nil {
		durationMs = int(stream.Meta.Duration.Milliseconds())
	}

	fp, err := fingerprint.Build(ctx, src, hasher, progress)
	if err != nil {
		return nil, 0, fmt.Errorf("fingerprinting %s: %w", filepath.Base(videoPath), err)
	}
	s.log.Debugf("Fingerprinted %s: %d frames", filepath.Base(videoPath), fp.Len())
	return fp, durationMs, nil
}

// audioID identifies (or, with a label, registers) the soundtrack of a
// video. Any failure means "no audio match".
func (s *visualService) audioID(ctx context.Context, videoPath string, ws *utils.Workspace, label string) *string {
	samples, rate, err := s.audios(ctx, videoPath, ws.Dir)
	if err != nil {
		s.log.Warnf("No audio signal for %s: %v", filepath.Base(videoPath), err)
		metrics.AudioLookupsTotal.WithLabelValues("failed").Inc()
		return nil
	}

	if label != "" {
		id, reused, err := s.ident.Register(ctx, samples, rate, label)
		if err != nil {
			s.log.Warnf("Registering soundtrack of %s: %v", label, err)
			metrics.AudioLookupsTotal.WithLabelValues("failed").Inc()
			return nil
		}
		if reused {
			s.log.Infof("Soundtrack of %s matches existing track %s", label, id)
			metrics.AudioLookupsTotal.WithLabelValues("match").Inc()
		} else {
			metrics.AudioLookupsTotal.WithLabelValues("miss").Inc()
		}
		return &id
	}

	res, err := s.ident.Identify(ctx, samples, rate)
	if err != nil {
		s.log.Warnf("Identifying soundtrack of %s: %v", filepath.Base(videoPath), err)
		metrics.AudioLookupsTotal.WithLabelValues("failed").Inc()
		return nil
	}
	if !res.Matched {
		s.log.Debugf("No soundtrack match for %s (best %.1f%%, %d votes)", filepath.Base(videoPath), res.Confidence, res.Votes)
		metrics.AudioLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	}
	metrics.AudioLookupsTotal.WithLabelValues("match").Inc()
	id := res.TrackID
	return &id
}

func (s *visualService) release(ws *utils.Workspace) {
	if err := ws.Release(); err != nil {
		s.log.Warnf("Removing workspace: %v", err)
	}
}

func (s *visualService) GetEntry(filename string) (*models.Video, error) {
	return s.storage.GetVideo(filename)
}

func (s *visualService) ListEntries() ([]models.Video, error) {
	return s.storage.ListVideos()
}

// DeleteEntry removes a video from the catalog. Its soundtrack stays
// registered since other videos may share it.
func (s *visualService) DeleteEntry(filename string) error {
	return s.storage.DeleteVideo(filename)
}

// ImportCatalog upserts validated catalog records and returns how many were
// written.
func (s *visualService) ImportCatalog(records []catalog.Record) (int, error) {
	videos := make([]models.Video, len(records))
	for i, r := range records {
		videos[i] = r.Video()
	}
	if err := s.storage.UpsertVideos(videos); err != nil {
		return 0, fmt.Errorf("importing catalog: %w", err)
	}
	s.log.Infof("Imported %d catalog records", len(videos))
	return len(videos), nil
}

// ExportCatalog returns every stored video as a record. Rows whose stored
// fingerprint is corrupt are left out and logged.
func (s *visualService) ExportCatalog() ([]catalog.Record, error) {
	videos, err := s.storage.ListVideos()
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Record, 0, len(videos))
	for _, v := range videos {
		r, err := catalog.FromVideo(v)
		if err != nil {
			s.log.Warnf("Not exporting %v", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *visualService) Stats() (storage.Stats, error) {
	return s.storage.Stats()
}

// Close releases all resources held by the service.
func (s *visualService) Close() error {
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	errs = append(errs, s.storage.Close())
	return errors.Join(errs...)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrDecodeFailure):
		return metrics.OutcomeDecodeFailure
	case errors.Is(err, ErrEmptyTarget):
		return metrics.OutcomeEmptyTarget
	case errors.Is(err, models.ErrInvalidWeights):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

func audioLabel(id *string) string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return "none"
	}
	return *id
}
