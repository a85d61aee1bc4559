package videos

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	idRunPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}`)
)

var watchHosts = map[string]struct{}{
	"youtube.com":              {},
	"www.youtube.com":          {},
	"m.youtube.com":            {},
	"music.youtube.com":        {},
	"youtube-nocookie.com":     {},
	"www.youtube-nocookie.com": {},
}

var shortHosts = map[string]struct{}{
	"youtu.be":     {},
	"www.youtu.be": {},
}

// VideoID is a canonical 11 character YouTube video identifier. The zero value
// is not a valid identifier.
type VideoID struct {
	value string
}

// String returns the identifier as it appears in YouTube URLs.
func (id VideoID) String() string {
	return id.value
}

// IsZero reports whether the identifier is unset.
func (id VideoID) IsZero() bool {
	return id.value == ""
}

// MarshalText implements encoding.TextMarshaler.
func (id VideoID) MarshalText() ([]byte, error) {
	return []byte(id.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects anything that
// is not a bare identifier.
func (id *VideoID) UnmarshalText(text []byte) error {
	parsed, ok := ParseVideoID(string(text))
	if !ok {
		return ErrInvalidIdentifier
	}
	*id = parsed
	return nil
}

// ParseVideoID accepts only a bare identifier.
func ParseVideoID(raw string) (VideoID, bool) {
	if !videoIDPattern.MatchString(raw) {
		return VideoID{}, false
	}
	return VideoID{value: raw}, true
}

// ExtractID resolves a watch URL, short link, embed URL or bare identifier into
// a VideoID. The match is purely syntactic.
func ExtractID(raw string) (VideoID, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return VideoID{}, false
	}
	if id, ok := ParseVideoID(raw); ok {
		return id, true
	}

	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return VideoID{}, false
	}
	host := strings.ToLower(u.Hostname())

	if _, ok := shortHosts[host]; ok {
		return leadingID(strings.TrimPrefix(u.Path, "/"))
	}

	if _, ok := watchHosts[host]; !ok {
		return VideoID{}, false
	}

	switch {
	case u.Path == "/watch":
		return leadingID(u.Query().Get("v"))
	case strings.HasPrefix(u.Path, "/embed/"):
		return leadingID(strings.TrimPrefix(u.Path, "/embed/"))
	}
	return VideoID{}, false
}

// leadingID takes the 11 character run at the start of s and ignores the rest.
func leadingID(s string) (VideoID, bool) {
	run := idRunPattern.FindString(s)
	if run == "" {
		return VideoID{}, false
	}
	return VideoID{value: run}, true
}
