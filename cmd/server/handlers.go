package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/himanishpuri/VisualDNA/pkg/logger"
	"github.com/himanishpuri/VisualDNA/pkg/models"
	"github.com/himanishpuri/VisualDNA/pkg/utils"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna/catalog"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service visualdna.Service
	config  *visualdna.Config
	log     visualdna.Logger
}

// NewServer creates a new server instance
func NewServer(service visualdna.Service, config *visualdna.Config) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, code, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   code,
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps service errors onto status codes. Unknown errors
// are logged and reported without detail.
func (s *Server) respondServiceError(w http.ResponseWriter, op string, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, visualdna.ErrDecodeFailure):
		s.respondError(w, http.StatusUnprocessableEntity, codeDecodeFailure, err.Error())
	case errors.Is(err, visualdna.ErrEmptyTarget):
		s.respondError(w, http.StatusUnprocessableEntity, codeEmptyTarget, err.Error())
	case errors.Is(err, models.ErrInvalidWeights):
		s.respondError(w, http.StatusBadRequest, codeInvalidWeights, err.Error())
	case errors.Is(err, visualdna.ErrCorruptFingerprint):
		s.respondError(w, http.StatusBadRequest, codeCorruptFingerprint, err.Error())
	case errors.Is(err, visualdna.ErrNotFound):
		s.respondError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.As(err, &tooLarge):
		s.respondError(w, http.StatusRequestEntityTooLarge, codeTooLarge,
			fmt.Sprintf("upload exceeds %d MB", s.config.Server.MaxUploadMB))
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusGatewayTimeout, codeInternal, op+" timed out")
	default:
		s.log.Errorf("%s failed: %v", op, err)
		s.respondError(w, http.StatusInternalServerError, codeInternal, op+" failed")
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Stats()
	if err != nil {
		s.respondServiceError(w, "stats", err)
		return
	}
	s.respondJSON(w, http.StatusOK, StatsResponse{
		Status:       "healthy",
		DatabasePath: s.config.Storage.DBPath,
		Videos:       st.Videos,
		Tracks:       st.Tracks,
		Landmarks:    st.Landmarks,
		Hasher:       s.config.Fingerprint.Hasher,
	})
}

// receiveUpload copies the multipart file in field into ws and returns its
// path and the client's base file name.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request, field string, ws *utils.Workspace) (string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.config.Server.MaxUploadMB)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return "", "", err
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", field, errMissingFile)
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = field
	}
	path := ws.Path(name)
	out, err := os.Create(path)
	if err != nil {
		return "", "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", "", err
	}
	return path, name, out.Close()
}

// uploadError reports a failed upload as a client error where it is one.
func (s *Server) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		s.respondServiceError(w, "upload", err)
	case errors.Is(err, errMissingFile), errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	default:
		s.respondServiceError(w, "upload", err)
	}
}

func (s *Server) newWorkspace(w http.ResponseWriter, prefix string) (*utils.Workspace, bool) {
	ws, err := utils.NewWorkspace(s.config.Storage.TempDir, prefix)
	if err != nil {
		s.respondServiceError(w, "workspace", err)
		return nil, false
	}
	return ws, true
}

func (s *Server) releaseWorkspace(ws *utils.Workspace) {
	dir := ws.Dir
	if err := ws.Release(); err != nil {
		s.log.Warnf("Failed to remove %s: %v", dir, err)
	}
}

// formOptions reads visual_weight and top_k from a form.
func formOptions(r *http.Request) (visualdna.SearchOptions, error) {
	var opts visualdna.SearchOptions
	if v := strings.TrimSpace(r.FormValue("visual_weight")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, fmt.Errorf("%w: visual_weight %q", models.ErrInvalidWeights, v)
		}
		w := models.WeightsFromVisual(f)
		opts.Weights = &w
	}
	if v := strings.TrimSpace(r.FormValue("top_k")); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 0 {
			return opts, fmt.Errorf("invalid top_k %q", v)
		}
		opts.TopK = k
	}
	return opts, nil
}

// handleSearch handles POST /api/search (multipart video upload)
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	ws, ok := s.newWorkspace(w, "visualdna-upload-")
	if !ok {
		return
	}
	defer s.releaseWorkspace(ws)

	path, name, err := s.receiveUpload(w, r, "video", ws)
	if err != nil {
		s.uploadError(w, err)
		return
	}

	opts, err := formOptions(r)
	if err != nil {
		if errors.Is(err, models.ErrInvalidWeights) {
			s.respondServiceError(w, "search", err)
		} else {
			s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		}
		return
	}
	opts.Filename = name

	s.log.Infof("Searching uploaded video: %s", name)
	res, err := s.service.Search(ctx, path, opts)
	if err != nil {
		s.respondServiceError(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, newSearchResponse(res))
}

// handleSearchFingerprint handles POST /api/search/fingerprint (browser clients)
func (s *Server) handleSearchFingerprint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req SearchFingerprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}
	fp, err := req.Validate()
	if err != nil {
		if errors.Is(err, visualdna.ErrCorruptFingerprint) {
			s.respondServiceError(w, "search", err)
		} else {
			s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		}
		return
	}

	res, err := s.service.SearchFingerprint(ctx, req.Filename, fp, req.AudioID, visualdna.SearchOptions{
		Weights: req.Weights(),
		TopK:    req.TopK,
	})
	if err != nil {
		s.respondServiceError(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, newSearchResponse(res))
}

// handleListVideos handles GET /api/catalog
func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.service.ListEntries()
	if err != nil {
		s.respondServiceError(w, "list", err)
		return
	}
	dtos := make([]VideoDTO, len(videos))
	for i := range videos {
		dtos[i] = newVideoDTO(&videos[i], false)
	}
	s.respondJSON(w, http.StatusOK, ListVideosResponse{Videos: dtos, Count: len(dtos)})
}

// handleGetVideo handles GET /api/catalog/{filename}
func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	v, err := s.service.GetEntry(name)
	if err != nil {
		s.respondServiceError(w, "get", err)
		return
	}
	s.respondJSON(w, http.StatusOK, newVideoDTO(v, true))
}

// handleDeleteVideo handles DELETE /api/catalog/{filename}
func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if err := s.service.DeleteEntry(name); err != nil {
		s.respondServiceError(w, "delete", err)
		return
	}
	s.log.Infof("Deleted catalog entry: %s", name)
	s.respondJSON(w, http.StatusOK, DeleteVideoResponse{
		Message:  "Video deleted successfully",
		Filename: name,
	})
}

// handleIndexVideo handles POST /api/catalog: a multipart video upload, or a
// form with a url field to download.
func (s *Server) handleIndexVideo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Minute)
	defer cancel()

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		u := strings.TrimSpace(r.FormValue("url"))
		if u == "" {
			s.respondError(w, http.StatusBadRequest, codeBadRequest, "url is required")
			return
		}
		opts := visualdna.IndexOptions{Filename: strings.TrimSpace(r.FormValue("name")), SourceURL: u}
		if opts.Filename == "" {
			opts.Filename = utils.CatalogName(u)
		}
		s.log.Infof("Indexing video from URL: %s", u)
		v, err := s.service.IndexURL(ctx, u, opts)
		if err != nil {
			s.respondServiceError(w, "index", err)
			return
		}
		s.respondJSON(w, http.StatusCreated, IndexResponse{Message: "Video indexed successfully", Video: newVideoDTO(v, false)})
		return
	}

	ws, ok := s.newWorkspace(w, "visualdna-upload-")
	if !ok {
		return
	}
	defer s.releaseWorkspace(ws)

	path, name, err := s.receiveUpload(w, r, "video", ws)
	if err != nil {
		s.uploadError(w, err)
		return
	}
	if n := strings.TrimSpace(r.FormValue("name")); n != "" {
		name = n
	}

	s.log.Infof("Indexing uploaded video: %s", name)
	v, err := s.service.IndexVideo(ctx, path, visualdna.IndexOptions{Filename: name})
	if err != nil {
		s.respondServiceError(w, "index", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, IndexResponse{Message: "Video indexed successfully", Video: newVideoDTO(v, false)})
}

// handleImportCatalog handles POST /api/catalog/import (csv or xlsx upload)
func (s *Server) handleImportCatalog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.config.Server.MaxUploadMB)<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.uploadError(w, err)
		return
	}
	file, header, err := r.FormFile("catalog")
	if err != nil {
		s.uploadError(w, fmt.Errorf("catalog: %w", errMissingFile))
		return
	}
	defer file.Close()

	res, err := catalog.Read(file, header.Filename, r.FormValue("sheet"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	n, err := s.service.ImportCatalog(res.Records)
	if err != nil {
		s.respondServiceError(w, "import", err)
		return
	}
	s.log.Infof("Imported %d catalog rows from %s, rejected %d", n, header.Filename, len(res.Quarantined))
	s.respondJSON(w, http.StatusOK, ImportResponse{Imported: n, Rejected: newRejected(res.Quarantined)})
}

// handleExportCatalog handles GET /api/catalog/export?format=csv|xlsx
func (s *Server) handleExportCatalog(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = catalog.FormatCSV
	}
	contentType := map[string]string{
		catalog.FormatCSV:  "text/csv",
		catalog.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}[format]
	if contentType == "" {
		s.respondError(w, http.StatusBadRequest, codeBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	records, err := s.service.ExportCatalog()
	if err != nil {
		s.respondServiceError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="catalog.%s"`, format))
	if err := catalog.Write(w, format, records); err != nil {
		s.log.Errorf("Failed to write catalog export: %v", err)
	}
}
