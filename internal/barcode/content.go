package barcode

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// iso15434Header opens an ISO/IEC 15434 message envelope.
const iso15434Header = "[)>\x1e"

// gs1Identifiers are the symbology identifiers that flag GS1 data.
var gs1Identifiers = []string{"]C1", "]e0", "]e1", "]e2", "]d2", "]Q3", "]J1"}

// classifyContent derives the content type from the decoded text, the raw
// byte segments (if the symbol carried any) and the symbology identifier.
func classifyContent(text string, segments [][]byte, symbologyID string) ContentType {
	for _, id := range gs1Identifiers {
		if symbologyID == id {
			return ContentGS1
		}
	}
	if strings.HasPrefix(text, iso15434Header) {
		return ContentISO15434
	}

	textual := utf8.ValidString(text) && !hasControlBytes(text)
	switch {
	case textual && len(segments) > 0 && !segmentsMatchText(segments, text):
		return ContentMixed
	case textual:
		return ContentText
	default:
		return ContentBinary
	}
}

// hasControlBytes reports control characters other than common whitespace.
func hasControlBytes(s string) bool {
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			continue
		}
		if r < 0x20 || r == 0x7f || (r >= 0x80 && r < 0xa0) {
			return true
		}
	}
	return false
}

// segmentsMatchText reports whether the byte segments spell out the whole
// text, i.e. the symbol is a single byte-mode run.
func segmentsMatchText(segments [][]byte, text string) bool {
	var b strings.Builder
	for _, seg := range segments {
		b.Write(seg)
	}
	joined := b.String()
	return joined == text || latin1(joined) == text
}

// payloadBytes returns the raw payload. Byte segments win when present;
// otherwise the text is mapped back to bytes (Latin-1 when it fits).
func payloadBytes(text string, segments [][]byte) []byte {
	if len(segments) > 0 {
		var out []byte
		for _, seg := range segments {
			out = append(out, seg...)
		}
		return out
	}
	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return []byte(text)
	}
	return out
}

// latin1 interprets raw bytes as ISO-8859-1.
func latin1(s string) string {
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
