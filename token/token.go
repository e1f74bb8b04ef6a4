// Package token defines the value type shared by the sampler chain, the
// worker's token buffer and the client façade's generate stream.
package token

import "strings"

// sentencePieceSpace is the glyph llama.cpp's tokenizer substitutes for
// ASCII space inside decoded token text (U+2581, "LOWER ONE EIGHTH BLOCK").
const sentencePieceSpace = '▁'

// Token is a vocabulary entry paired with its decoded text rendering.
// Value-typed and cheap to copy; never reference-counted.
type Token struct {
	ID   int32
	Text string
}

// NormalizeText rewrites llama.cpp's internal space-substitution glyph to an
// ASCII space. No other normalization is performed.
func NormalizeText(raw string) string {
	if !strings.ContainsRune(raw, sentencePieceSpace) {
		return raw
	}
	return strings.ReplaceAll(raw, string(sentencePieceSpace), " ")
}
