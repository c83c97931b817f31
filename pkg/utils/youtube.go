package utils

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var youTubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// youTubeHost reports whether host serves YouTube videos.
func youTubeHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	host = strings.TrimPrefix(host, "m.")
	return host == "youtube.com" || host == "youtu.be" || host == "music.youtube.com" ||
		host == "youtube-nocookie.com"
}

// ExtractYouTubeID returns the 11-character video id of a watch, short,
// embed, live or youtu.be link.
func ExtractYouTubeID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if !youTubeHost(u.Host) {
		return "", fmt.Errorf("not a YouTube URL: %s", rawURL)
	}

	var id string
	switch p := u.Path; {
	case strings.EqualFold(strings.TrimPrefix(u.Host, "www."), "youtu.be"):
		id = strings.Trim(p, "/")
	case p == "/watch":
		id = u.Query().Get("v")
	default:
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/", "/v/"} {
			if strings.HasPrefix(p, prefix) {
				id = strings.TrimPrefix(p, prefix)
				break
			}
		}
	}

	id = path.Clean("/" + id)[1:]
	if !youTubeIDPattern.MatchString(id) {
		return "", fmt.Errorf("unable to extract video ID from URL: %s", rawURL)
	}
	return id, nil
}

func IsYouTubeURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	return err == nil && youTubeHost(u.Host)
}

// CatalogName is the default catalog file name for a downloaded video:
// "<id>.mp4" for YouTube links, "" when no stable name can be derived.
func CatalogName(rawURL string) string {
	if !IsYouTubeURL(rawURL) {
		return ""
	}
	id, err := ExtractYouTubeID(rawURL)
	if err != nil {
		return ""
	}
	return id + ".mp4"
}
