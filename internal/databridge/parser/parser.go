// Package parser turns raw document content into chunk-sized text
// windows and extracts lightweight metadata during parsing.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ParsedDocument is the result of parsing one document.
type ParsedDocument struct {
	// Content is the full decoded text.
	Content string

	// AdditionalMetadata holds fields extracted during parsing.
	AdditionalMetadata map[string]any

	// Chunks are the overlapping text windows in order.
	Chunks []string
}

// Parser splits text into overlapping rune windows.
type Parser struct {
	chunkSize int
	overlap   int
}

// New creates a parser. Overlap is clamped below chunkSize.
func New(chunkSize, overlap int) *Parser {
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return &Parser{chunkSize: chunkSize, overlap: overlap}
}

// ParseText parses an already-decoded text document.
func (p *Parser) ParseText(content string) (*ParsedDocument, error) {
	chunks := p.SplitIntoChunks(content)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no content to ingest")
	}
	return &ParsedDocument{
		Content:            content,
		AdditionalMetadata: map[string]any{},
		Chunks:             chunks,
	}, nil
}

// ParseFile parses raw file bytes with the declared content type. The
// bytes are treated as UTF-8 text; non-text originals still get their
// decodable text indexed while the raw bytes live in blob storage.
func (p *Parser) ParseFile(data []byte, contentType, filename string) (*ParsedDocument, error) {
	content := string(data)
	doc, err := p.ParseText(content)
	if err != nil {
		return nil, err
	}

	if filename != "" {
		doc.AdditionalMetadata["filename"] = filename
	}
	if contentType != "" {
		doc.AdditionalMetadata["content_type"] = contentType
	}
	if title := extractTitle(content); title != "" {
		doc.AdditionalMetadata["title"] = title
	}
	return doc, nil
}

// SplitIntoChunks splits text into overlapping windows of chunkSize
// Unicode characters. Windows that are blank after trimming are
// dropped.
func (p *Parser) SplitIntoChunks(text string) []string {
	if p.chunkSize <= 0 {
		return nil
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= p.chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	var chunks []string
	step := p.chunkSize - p.overlap

	for i := 0; i < len(runes); i += step {
		end := i + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := string(runes[i:end])
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}

	return chunks
}

var titleRegex = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

// extractTitle returns the first markdown heading, truncated to 250
// characters.
func extractTitle(content string) string {
	match := titleRegex.FindStringSubmatch(content)
	if match == nil {
		return ""
	}
	return TruncateString(strings.TrimSpace(match[1]), 250)
}

// TruncateString truncates a string to maxLen Unicode characters.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}
