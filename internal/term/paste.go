package term

import "strings"

const (
	bracketedPasteStart = "\x1b[200~"
	bracketedPasteEnd   = "\x1b[201~"
)

// EncodePasteToBytes returns bytes to send for pasted content. When the
// remote side enabled bracketed paste, the payload is wrapped with the
// xterm markers. Embedded end markers are removed so pasted text cannot
// terminate the bracket early.
func EncodePasteToBytes(content string, bracketed bool) []byte {
	if content == "" {
		return nil
	}
	if !bracketed {
		return []byte(content)
	}
	content = strings.ReplaceAll(content, bracketedPasteEnd, "")
	out := make([]byte, 0, len(content)+len(bracketedPasteStart)+len(bracketedPasteEnd))
	out = append(out, bracketedPasteStart...)
	out = append(out, content...)
	out = append(out, bracketedPasteEnd...)
	return out
}
