package conversion

import (
	"fmt"
	"strings"

	"media-converter/internal/mediatypes"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key.
const (
	msgInvalidImage   = "Please upload a HEIC file."
	msgInvalidVideo   = "Please upload a MOV file."
	msgConverting     = "Converting..."
	msgPreparingVideo = "Preparing video encoder..."
	msgEncodingVideo  = "Encoding video... (%d%%)"
	msgImageFailed    = "An error occurred during conversion: %s"
	msgVideoFailed    = "An error occurred while converting the video."
	msgEngineFailed   = "The video encoder could not be loaded."
	msgDownload       = "Download %s"
	msgImageTitle     = "Convert HEIC images to high-quality JPG, quickly and safely."
	msgVideoTitle     = "Convert MOV videos to MP4 with ease."
	msgImageHint      = "Supports HEIC and HEIF files"
	msgVideoHint      = "Supports MOV files"
	msgImagePrompt    = "Drag an image here or click to choose"
	msgVideoPrompt    = "Drag a video here or click to choose"
)

var (
	supported = []language.Tag{language.Korean, language.English}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	korean := map[string]string{
		msgInvalidImage:   "HEIC 파일만 업로드해주세요.",
		msgInvalidVideo:   "MOV 파일만 업로드해주세요.",
		msgConverting:     "변환 중입니다...",
		msgPreparingVideo: "동영상 인코딩 준비 중...",
		msgEncodingVideo:  "동영상 인코딩 중... (%d%%)",
		msgImageFailed:    "변환 중 오류가 발생했습니다: %s",
		msgVideoFailed:    "영상 변환 중 오류가 발생했습니다.",
		msgEngineFailed:   "동영상 인코더를 불러오지 못했습니다.",
		msgDownload:       "%s 다운로드",
		msgImageTitle:     "HEIC 이미지를 고화질 JPG로 빠르고 안전하게 변환하세요.",
		msgVideoTitle:     "MOV 영상을 MP4로 간편하게 변환하세요.",
		msgImageHint:      "HEIC, HEIF 파일 지원",
		msgVideoHint:      "MOV 파일 지원",
		msgImagePrompt:    "이미지를 드래그하거나 클릭하여 선택",
		msgVideoPrompt:    "동영상을 드래그하거나 클릭하여 선택",
	}
	for key, text := range korean {
		mustSet(b, language.Korean, key, text)
		mustSet(b, language.English, key, key)
	}
	return b
}

// mustSet panics on a malformed entry so a bad format string fails at
// package init.
func mustSet(b *catalog.Builder, tag language.Tag, key, text string) {
	if err := b.SetString(tag, key, text); err != nil {
		panic(fmt.Sprintf("conversion: catalog entry %q (%s): %v", key, tag, err))
	}
}

// Messages renders user-facing job text in one language.
type Messages struct {
	tag     language.Tag
	printer *message.Printer
}

// NewMessages picks the closest supported language for lang (a BCP 47 tag
// or Accept-Language value). Unknown values fall back to Korean, the
// product's primary language.
func NewMessages(lang string) Messages {
	tag, _ := language.MatchStrings(matcher, lang)
	base, _ := tag.Base()
	tag = language.Make(base.String())
	return Messages{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(messages)),
	}
}

// Language returns the selected language tag.
func (m Messages) Language() language.Tag {
	return m.tag
}

func (m Messages) invalidInput(mode mediatypes.Mode) string {
	if mode == mediatypes.ModeVideo {
		return m.printer.Sprintf(msgInvalidVideo)
	}
	return m.printer.Sprintf(msgInvalidImage)
}

func (m Messages) converting() string {
	return m.printer.Sprintf(msgConverting)
}

func (m Messages) preparingVideo() string {
	return m.printer.Sprintf(msgPreparingVideo)
}

func (m Messages) encodingVideo(percent int) string {
	return m.printer.Sprintf(msgEncodingVideo, percent)
}

func (m Messages) imageFailed(detail string) string {
	return m.printer.Sprintf(msgImageFailed, detail)
}

func (m Messages) videoFailed() string {
	return m.printer.Sprintf(msgVideoFailed)
}

func (m Messages) engineFailed() string {
	return m.printer.Sprintf(msgEngineFailed)
}

func (m Messages) download(ext string) string {
	return m.printer.Sprintf(msgDownload, strings.ToUpper(ext))
}

// UIProfile is the per-mode text a front end shows next to the picker.
type UIProfile struct {
	Mode          mediatypes.Mode `json:"mode"`
	Accept        string          `json:"accept"`
	Title         string          `json:"title"`
	Hint          string          `json:"hint"`
	Prompt        string          `json:"prompt"`
	DownloadLabel string          `json:"downloadLabel"`
}

// UIProfile returns the localized picker text for mode.
func (m Messages) UIProfile(mode mediatypes.Mode) UIProfile {
	p, _ := mediatypes.ProfileFor(mode)
	ui := UIProfile{
		Mode:          mode,
		Accept:        p.Accept,
		DownloadLabel: m.download(p.OutputExtension),
	}
	if mode == mediatypes.ModeVideo {
		ui.Title = m.printer.Sprintf(msgVideoTitle)
		ui.Hint = m.printer.Sprintf(msgVideoHint)
		ui.Prompt = m.printer.Sprintf(msgVideoPrompt)
	} else {
		ui.Title = m.printer.Sprintf(msgImageTitle)
		ui.Hint = m.printer.Sprintf(msgImageHint)
		ui.Prompt = m.printer.Sprintf(msgImagePrompt)
	}
	return ui
}
