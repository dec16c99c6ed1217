package mime

import (
	"path/filepath"
	"strings"
)

type MIME = string

const (
	OctetStream MIME = "application/octet-stream"
	Plain       MIME = "text/plain"
	HTML        MIME = "text/html"
	XML         MIME = "text/xml"
	JSON        MIME = "application/json"
	YAML        MIME = "application/yaml"
	PDF         MIME = "application/pdf"
	ZIP         MIME = "application/zip"
	GZIP        MIME = "application/gzip"
	AVIF        MIME = "image/avif"
	CSS         MIME = "text/css"
	GIF         MIME = "image/gif"
	JPEG        MIME = "image/jpeg"
	PNG         MIME = "image/png"
	SVG         MIME = "image/svg+xml"
	ICO         MIME = "image/vnd.microsoft.icon"
	WEBP        MIME = "image/webp"
	JS          MIME = "text/javascript"
	WASM        MIME = "application/wasm"
)

var extensions = map[string]MIME{
	".avif": AVIF,
	".css":  CSS,
	".gif":  GIF,
	".htm":  HTML,
	".html": HTML,
	".jpeg": JPEG,
	".jpg":  JPEG,
	".js":   JS,
	".mjs":  JS,
	".json": JSON,
	".pdf":  PDF,
	".png":  PNG,
	".svg":  SVG,
	".txt":  Plain,
	".wasm": WASM,
	".webp": WEBP,
	".xml":  XML,
	".yaml": YAML,
	".yml":  YAML,
	".gz":   GZIP,
	".zip":  ZIP,
	".ico":  ICO,
}

// textual MIMEs are served with an explicit charset.
var textual = map[MIME]bool{
	Plain: true,
	HTML:  true,
	CSS:   true,
	JS:    true,
	XML:   true,
}

// ByFilename guesses the content type by the file extension, falling back to OctetStream.
func ByFilename(name string) string {
	mime, found := extensions[strings.ToLower(filepath.Ext(name))]
	if !found {
		return OctetStream
	}

	if textual[mime] {
		return mime + ";charset=utf-8"
	}

	return mime
}
