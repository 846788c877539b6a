package parser

import (
	"strings"
	"testing"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		text      string
		want      int
	}{
		{"short text single chunk", 100, 20, "hello world", 1},
		{"exact size single chunk", 5, 0, "abcde", 1},
		{"two chunks no overlap", 5, 0, "abcdefgh", 2},
		{"overlap produces more chunks", 4, 2, "abcdefgh", 3},
		{"empty text", 100, 20, "", 0},
		{"whitespace only", 100, 20, "   \n\t  ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.chunkSize, tt.overlap)
			chunks := p.SplitIntoChunks(tt.text)
			if len(chunks) != tt.want {
				t.Errorf("got %d chunks, want %d: %q", len(chunks), tt.want, chunks)
			}
		})
	}
}

func TestSplitIntoChunksOverlapContent(t *testing.T) {
	p := New(4, 2)
	chunks := p.SplitIntoChunks("abcdefgh")
	if chunks[0] != "abcd" || chunks[1] != "cdef" || chunks[2] != "efgh" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestSplitIntoChunksUnicode(t *testing.T) {
	p := New(3, 0)
	chunks := p.SplitIntoChunks("你好世界再见啦")
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "你好世" {
		t.Errorf("unexpected first chunk: %s", chunks[0])
	}
}

func TestParseTextEmpty(t *testing.T) {
	p := New(100, 20)
	if _, err := p.ParseText(""); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestParseText(t *testing.T) {
	p := New(10, 0)
	doc, err := p.ParseText(strings.Repeat("a", 25))
	if err != nil {
		t.Fatalf("ParseText() error = %v", err)
	}
	if len(doc.Chunks) != 3 {
		t.Errorf("expected 3 chunks, got %d", len(doc.Chunks))
	}
	if doc.Content != strings.Repeat("a", 25) {
		t.Error("full content not preserved")
	}
}

func TestParseFileMetadata(t *testing.T) {
	p := New(100, 0)
	doc, err := p.ParseFile([]byte("# Release Notes\n\nbody text"), "text/markdown", "notes.md")
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if doc.AdditionalMetadata["title"] != "Release Notes" {
		t.Errorf("unexpected title: %v", doc.AdditionalMetadata["title"])
	}
	if doc.AdditionalMetadata["filename"] != "notes.md" {
		t.Errorf("unexpected filename: %v", doc.AdditionalMetadata["filename"])
	}
	if doc.AdditionalMetadata["content_type"] != "text/markdown" {
		t.Errorf("unexpected content type: %v", doc.AdditionalMetadata["content_type"])
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("hello", 10); got != "hello" {
		t.Errorf("unexpected result: %s", got)
	}
	if got := TruncateString("hello", 3); got != "hel" {
		t.Errorf("unexpected result: %s", got)
	}
	if got := TruncateString("你好世界", 2); got != "你好" {
		t.Errorf("unexpected result: %s", got)
	}
}
