package resfs

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/h2non/filetype"
)

// Common MIME types
const (
	MIMETypeTextPlain       = "text/plain"
	MIMETypeApplicationJSON = "application/json"
	MIMETypeApplicationTOML = "application/toml"
	MIMETypeApplicationYAML = "application/yaml"
	MIMETypeApplicationCUE  = "application/cue"
	MIMETypeImagePNG        = "image/png"
	MIMETypeAudioOGG        = "audio/ogg"
	MIMETypeApplicationZip  = "application/zip"
	MIMETypeOctetStream     = "application/octet-stream"
)

// Extensions whose MIME type is not reliably known to the mime package.
var extensionToMIME = map[string]string{
	".txt":  MIMETypeTextPlain,
	".json": MIMETypeApplicationJSON,
	".toml": MIMETypeApplicationTOML,
	".yaml": MIMETypeApplicationYAML,
	".yml":  MIMETypeApplicationYAML,
	".cue":  MIMETypeApplicationCUE,
	".png":  MIMETypeImagePNG,
	".ogg":  MIMETypeAudioOGG,
	".zip":  MIMETypeApplicationZip,
	".lua":  "text/x-lua",
	".glsl": "text/x-glsl",
	".md":   "text/markdown",
}

// GuessContentType determines a MIME type from the address extension and,
// when that is inconclusive, from the leading bytes of data.
func GuessContentType(p Path, data []byte) string {
	ext := strings.ToLower(p.Extension())
	if contentType, ok := extensionToMIME[ext]; ok {
		return contentType
	}

	if len(data) > 0 {
		if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
			return kind.MIME.Value
		}
		return http.DetectContentType(data)
	}

	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return MIMETypeOctetStream
}

// IsTextContent reports whether contentType denotes text the decoders or a
// text editor can handle.
func IsTextContent(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		contentType == MIMETypeApplicationJSON ||
		contentType == MIMETypeApplicationTOML ||
		contentType == MIMETypeApplicationYAML ||
		contentType == MIMETypeApplicationCUE
}

// sniffLen is the number of bytes ContentType inspects.
const sniffLen = 512

// ContentType reads the file at p and guesses its MIME type.
func (r *Registry) ContentType(ctx context.Context, p Path) (string, error) {
	data, err := r.ReadBytes(ctx, p)
	if err != nil {
		return "", err
	}
	if len(data) > sniffLen {
		data = data[:sniffLen]
	}
	return GuessContentType(p, data), nil
}
