package parser

import (
	"net/url"
	"path"
	"strings"

	"github.com/ratcrawler/ratcrawler/internal/types"
)

// extensionTypes maps URL path extensions to the coarse content class. HTML
// is the default when the path has no extension or ends with a slash.
var extensionTypes = map[string]types.ContentType{
	".html":  types.ContentHTML,
	".htm":   types.ContentHTML,
	".xhtml": types.ContentHTML,
	".php":   types.ContentHTML,
	".asp":   types.ContentHTML,
	".aspx":  types.ContentHTML,
	".jsp":   types.ContentHTML,

	".pdf": types.ContentPDF,

	".jpg":  types.ContentImage,
	".jpeg": types.ContentImage,
	".png":  types.ContentImage,
	".gif":  types.ContentImage,
	".webp": types.ContentImage,
	".svg":  types.ContentImage,
	".ico":  types.ContentImage,
	".bmp":  types.ContentImage,

	".doc":  types.ContentDocument,
	".docx": types.ContentDocument,
	".xls":  types.ContentDocument,
	".xlsx": types.ContentDocument,
	".ppt":  types.ContentDocument,
	".pptx": types.ContentDocument,
	".odt":  types.ContentDocument,
	".rtf":  types.ContentDocument,
	".txt":  types.ContentDocument,

	".zip": types.ContentArchive,
	".tar": types.ContentArchive,
	".gz":  types.ContentArchive,
	".bz2": types.ContentArchive,
	".7z":  types.ContentArchive,
	".rar": types.ContentArchive,

	".mp3":  types.ContentMedia,
	".mp4":  types.ContentMedia,
	".avi":  types.ContentMedia,
	".mov":  types.ContentMedia,
	".mkv":  types.ContentMedia,
	".webm": types.ContentMedia,
	".wav":  types.ContentMedia,
	".ogg":  types.ContentMedia,

	".css": types.ContentStylesheet,

	".js":  types.ContentScript,
	".mjs": types.ContentScript,

	".json": types.ContentData,
	".xml":  types.ContentData,
	".csv":  types.ContentData,
	".rss":  types.ContentData,
	".yaml": types.ContentData,
	".yml":  types.ContentData,

	".woff":  types.ContentFont,
	".woff2": types.ContentFont,
	".ttf":   types.ContentFont,
	".otf":   types.ContentFont,
	".eot":   types.ContentFont,
}

// ClassifyURL picks the content class and extension from the URL path alone.
func ClassifyURL(rawURL string) (types.ContentType, string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.ContentHTML, ""
	}
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return types.ContentHTML, ""
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return types.ContentHTML, ""
	}
	if ct, ok := extensionTypes[ext]; ok {
		return ct, ext
	}
	return types.ContentOther, ext
}
