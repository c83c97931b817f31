package video

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/himanishpuri/VisualDNA/pkg/utils"
)

// Download is a video fetched from a URL.
type Download struct {
	Path       string
	ID         string
	Title      string
	Duration   time.Duration
	WebpageURL string
}

type ytInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
	Ext        string  `json:"ext"`
	Filename   string  `json:"_filename"`
}

// DownloadURL fetches a single video (no playlists) into outputDir with
// yt-dlp, capped at 480p since only 32x32 frames are ever used.
func DownloadURL(ctx context.Context, url, outputDir string) (*Download, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	res, err := ytdlp.New().
		Format("bv*[height<=480]+ba/b[height<=480]/b").
		MergeOutputFormat("mp4").
		NoPlaylist().
		NoWarnings().
		DumpJSON().
		NoSimulate().
		Output(filepath.Join(outputDir, "%(id)s.%(ext)s")).
		Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(res.Stderr)
		}
		return nil, fmt.Errorf("yt-dlp download failed: %v (%s)", err, stderr)
	}

	info, err := parseInfo(res.Stdout)
	if err != nil {
		return nil, err
	}
	if info.ID == "" {
		if id, idErr := utils.ExtractYouTubeID(url); idErr == nil {
			info.ID = id
		}
	}
	if info.ID == "" {
		return nil, fmt.Errorf("missing video ID in yt-dlp output")
	}

	path, err := locate(outputDir, info)
	if err != nil {
		return nil, err
	}

	return &Download{
		Path:       path,
		ID:         info.ID,
		Title:      info.Title,
		Duration:   time.Duration(info.Duration * float64(time.Second)),
		WebpageURL: firstNonEmpty(info.WebpageURL, url),
	}, nil
}

// parseInfo reads the first JSON object yt-dlp printed.
func parseInfo(stdout string) (ytInfo, error) {
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info ytInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			return ytInfo{}, fmt.Errorf("failed to parse yt-dlp JSON: %w", err)
		}
		return info, nil
	}
	return ytInfo{}, fmt.Errorf("yt-dlp printed no video info")
}

// locate finds the downloaded file; merging may change the extension
// yt-dlp reported.
func locate(dir string, info ytInfo) (string, error) {
	if info.Filename != "" {
		if _, err := os.Stat(info.Filename); err == nil {
			return info.Filename, nil
		}
	}
	for _, ext := range []string{"mp4", info.Ext, "mkv", "webm", "mov"} {
		if ext == "" {
			continue
		}
		p := filepath.Join(dir, info.ID+"."+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, info.ID+".*"))
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") && !strings.HasSuffix(m, ".ytdl") {
			return m, nil
		}
	}
	return "", fmt.Errorf("downloaded video file not found for %s", info.ID)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
