package fetcher

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DecodeBody converts raw response bytes to a UTF-8 string. The declared
// charset from the Content-Type header wins; otherwise valid UTF-8 passes
// through, then Latin-1, then a lossy conversion that replaces bad bytes.
// Returns the text and the charset actually used.
func DecodeBody(body []byte, contentType string) (string, string) {
	if name := headerCharset(contentType); name != "" {
		enc, canonical := charset.Lookup(name)
		if enc != nil {
			decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
			if err == nil && utf8.Valid(decoded) {
				return string(decoded), canonical
			}
		}
	}

	if utf8.Valid(body) {
		return string(body), "utf-8"
	}

	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), body)
	if err == nil {
		return string(decoded), "iso-8859-1"
	}

	return strings.ToValidUTF8(string(body), string(utf8.RuneError)), "utf-8"
}

// headerCharset extracts the charset parameter from a Content-Type value.
func headerCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}
