package mediatypes

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects the conversion pipeline.
type Mode string

const (
	// ModeImage converts HEIC/HEIF stills to JPEG.
	ModeImage Mode = "image"
	// ModeVideo converts MOV clips to MP4.
	ModeVideo Mode = "video"
)

// ErrUnknownMode is returned by ParseMode for unrecognized mode names.
var ErrUnknownMode = errors.New("unknown conversion mode")

// ParseMode converts a user-supplied mode name. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeImage:
		return ModeImage, nil
	case ModeVideo:
		return ModeVideo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Profile describes what a mode accepts and what it produces.
type Profile struct {
	Mode Mode `json:"mode"`

	// InputExtensions are lowercase suffixes (with dot) accepted by name.
	InputExtensions []string `json:"inputExtensions"`
	// InputMimeTypes are declared media types accepted regardless of name.
	InputMimeTypes []string `json:"inputMimeTypes,omitempty"`
	// Accept is the file-picker accept attribute shown to users.
	Accept string `json:"accept"`

	OutputExtension string `json:"outputExtension"`
	OutputMimeType  string `json:"outputMimeType"`
}

var profiles = map[Mode]Profile{
	ModeImage: {
		Mode:            ModeImage,
		InputExtensions: []string{".heic", ".heif"},
		InputMimeTypes:  []string{"image/heic", "image/heif"},
		Accept:          ".heic,.HEIC,.heif,.HEIF",
		OutputExtension: "jpg",
		OutputMimeType:  "image/jpeg",
	},
	ModeVideo: {
		Mode:            ModeVideo,
		InputExtensions: []string{".mov"},
		Accept:          ".mov,.MOV",
		OutputExtension: "mp4",
		OutputMimeType:  "video/mp4",
	},
}

// ProfileFor returns the profile of a mode. Unknown modes yield ok=false.
func ProfileFor(m Mode) (Profile, bool) {
	p, ok := profiles[m]
	return p, ok
}

// Modes lists the supported modes in display order.
func Modes() []Mode {
	return []Mode{ModeImage, ModeVideo}
}

// Accepts reports whether a file with the given name and declared media type
// is valid input for the profile. Names are matched case-insensitively.
func (p Profile) Accepts(name, declaredType string) bool {
	lower := strings.ToLower(name)
	for _, ext := range p.InputExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	for _, mt := range p.InputMimeTypes {
		if declared == mt {
			return true
		}
	}
	return false
}

// OutputName derives the suggested download name for a source file.
func (p Profile) OutputName(sourceName string) string {
	return Stem(sourceName) + "." + p.OutputExtension
}

// Stem removes the final extension from a file name. Only a trailing
// ".ext" with no slash in ext is removed, so "a.b/c" is returned unchanged
// and ".heic" becomes "".
func Stem(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return name
	}
	if strings.ContainsRune(name[i+1:], '/') {
		return name
	}
	return name[:i]
}

// ModeForName guesses the mode for a file name from its extension. Used by
// the CLI when no mode is given explicitly.
func ModeForName(name string) (Mode, bool) {
	for _, m := range Modes() {
		if profiles[m].Accepts(name, "") {
			return m, true
		}
	}
	return "", false
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
}

// GetMimeType returns the MIME type for a file name based on its extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(name string) string {
	if mime, ok := MimeTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mime
	}
	return "application/octet-stream"
}
