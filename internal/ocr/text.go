package ocr

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

type textDecoder struct {
	name string
	// applies reports whether this decoder should be tried at all.
	applies func(b []byte) bool
	enc     encoding.Encoding
}

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// textDecoders are tried in order; the first clean decode wins.
var textDecoders = []textDecoder{
	{name: "utf-8", applies: utf8.Valid, enc: unicode.UTF8BOM},
	{
		name: "utf-16",
		applies: func(b []byte) bool {
			return bytes.HasPrefix(b, bomUTF16LE) || bytes.HasPrefix(b, bomUTF16BE)
		},
		enc: unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM),
	},
	{name: "windows-1252", applies: func([]byte) bool { return true }, enc: charmap.Windows1252},
}

func (e *Extractor) acquireText(content []byte) (ExtractedText, error) {
	txt, name, err := decodeText(content)
	if err != nil {
		return ExtractedText{}, err
	}
	e.logger.Debug("decoded text document", "encoding", name)
	return ExtractedText{
		Text:   Normalize(txt),
		Source: constants.SourceDirectDecode,
		Pages:  1,
	}, nil
}

func decodeText(content []byte) (string, string, error) {
	var tried []string
	for _, d := range textDecoders {
		if !d.applies(content) {
			continue
		}
		tried = append(tried, d.name)
		out, err := d.enc.NewDecoder().Bytes(content)
		if err != nil {
			continue
		}
		s := string(out)
		if !looksLikeText(s) {
			continue
		}
		return s, d.name, nil
	}
	return "", "", acqErr(ReasonDecodeError, fmt.Sprintf("text could not be decoded (tried %v)", tried), nil)
}

// looksLikeText rejects replacement characters and control codes other than
// ordinary whitespace, which mark a wrong guess at the encoding or binary data.
func looksLikeText(s string) bool {
	for _, r := range s {
		switch {
		case r == utf8.RuneError:
			return false
		case r == '\n' || r == '\r' || r == '\t' || r == '\f':
		case r < 0x20 || (r >= 0x7F && r <= 0x9F):
			return false
		}
	}
	return true
}
