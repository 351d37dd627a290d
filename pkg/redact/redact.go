// Package redact keeps raw T-SQL text inside the parsing boundary.
//
// Summarize reduces a source text to a Digest, the only form of it that may
// reach logs, errors or responses. Mask blanks comments and string literal
// content while keeping every byte offset intact, so pattern matching and
// position reporting on the masked copy line up with the original.
package redact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/zeebo/blake3"
)

// ErrUnterminated is returned by MaskStrict when a string literal, quoted
// identifier or block comment is never closed.
var ErrUnterminated = errors.New("unterminated literal")

// Digest identifies a source text without revealing it.
type Digest struct {
	Length int    `json:"len" yaml:"len" toon:"len"`
	Hash8  string `json:"hash8" yaml:"hash8" toon:"hash8"`
}

// Summarize returns the character count and the first 8 hex characters of
// the BLAKE3-256 hash of raw.
func Summarize(raw string) Digest {
	sum := blake3.Sum256([]byte(raw))
	return Digest{
		Length: utf8.RuneCountInString(raw),
		Hash8:  hex.EncodeToString(sum[:4]),
	}
}

func (d Digest) String() string {
	return fmt.Sprintf("len=%d hash8=%s", d.Length, d.Hash8)
}

// LogValue implements slog.LogValuer.
func (d Digest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("len", d.Length),
		slog.String("hash8", d.Hash8),
	)
}

// Mask returns raw with comments replaced by spaces and string literal
// content replaced by spaces between the original quotes. Newlines are kept
// so line numbers survive. Unterminated constructs are masked to the end of
// the text.
func Mask(raw string) string {
	masked, _ := mask(raw)
	return masked
}

// MaskStrict behaves like Mask but reports unterminated constructs.
func MaskStrict(raw string) (string, error) {
	return mask(raw)
}

func mask(raw string) (string, error) {
	buf := []byte(raw)
	n := len(buf)
	var err error

	for i := 0; i < n; {
		c := buf[i]
		switch {
		case c == '-' && i+1 < n && buf[i+1] == '-':
			for i < n && buf[i] != '\n' {
				buf[i] = ' '
				i++
			}
		case c == '/' && i+1 < n && buf[i+1] == '*':
			var ok bool
			i, ok = blankBlockComment(buf, i)
			if !ok {
				err = fmt.Errorf("block comment: %w", ErrUnterminated)
			}
		case c == '\'':
			var ok bool
			i, ok = blankString(buf, i)
			if !ok {
				err = fmt.Errorf("string literal: %w", ErrUnterminated)
			}
		case c == '[':
			var ok bool
			i, ok = skipQuoted(buf, i, ']')
			if !ok {
				err = fmt.Errorf("bracketed identifier: %w", ErrUnterminated)
			}
		case c == '"':
			var ok bool
			i, ok = skipQuoted(buf, i, '"')
			if !ok {
				err = fmt.Errorf("quoted identifier: %w", ErrUnterminated)
			}
		default:
			i++
		}
	}
	return string(buf), err
}

// blankBlockComment blanks a possibly nested /* */ comment starting at i and
// returns the index just past it.
func blankBlockComment(buf []byte, i int) (int, bool) {
	n := len(buf)
	depth := 0
	for i < n {
		switch {
		case buf[i] == '/' && i+1 < n && buf[i+1] == '*':
			depth++
			buf[i], buf[i+1] = ' ', ' '
			i += 2
		case buf[i] == '*' && i+1 < n && buf[i+1] == '/':
			depth--
			buf[i], buf[i+1] = ' ', ' '
			i += 2
			if depth == 0 {
				return i, true
			}
		default:
			if buf[i] != '\n' {
				buf[i] = ' '
			}
			i++
		}
	}
	return n, false
}

// blankString blanks the content of the literal starting at i, keeping both
// quotes, and returns the index just past it.
func blankString(buf []byte, start int) (int, bool) {
	n := len(buf)
	i := start + 1
	for i < n {
		if buf[i] == '\'' {
			if i+1 < n && buf[i+1] == '\'' {
				i += 2
				continue
			}
			break
		}
		i++
	}
	if i >= n {
		for j := start + 1; j < n; j++ {
			if buf[j] != '\n' {
				buf[j] = ' '
			}
		}
		return n, false
	}
	for j := start + 1; j < i; j++ {
		if buf[j] != '\n' {
			buf[j] = ' '
		}
	}
	return i + 1, true
}

// skipQuoted advances past a delimited identifier, honoring doubled closers.
func skipQuoted(buf []byte, start int, closer byte) (int, bool) {
	n := len(buf)
	for i := start + 1; i < n; i++ {
		if buf[i] == closer {
			if i+1 < n && buf[i+1] == closer {
				i++
				continue
			}
			return i + 1, true
		}
		if buf[i] == '\n' {
			return i, false
		}
	}
	return n, false
}
