package retrieval

import (
	"strings"

	"github.com/nexuscore/agentkit/pkg/errs"
)

// Chunker splits a Document into Chunks, grounded on
// internal/rag/chunker/{chunker,recursive}.go's Chunker interface and recursive
// character splitter.
type Chunker interface {
	Chunk(doc *Document) ([]*Chunk, error)
	Name() string
}

// simpleChunker implements Chunk=Simple(size, overlap): fixed-size windows with a
// fixed character overlap, recursive-separator-free.
type simpleChunker struct {
	size    int
	overlap int
}

// NewSimpleChunker builds a Simple(size, overlap) chunker. overlap is clamped to
// size/2 per the spec's chunking contract.
func NewSimpleChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap > size/2 {
		overlap = size / 2
	}
	return &simpleChunker{size: size, overlap: overlap}
}

func (c *simpleChunker) Name() string { return "simple" }

func (c *simpleChunker) Chunk(doc *Document) ([]*Chunk, error) {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var chunks []*Chunk
	step := c.size - c.overlap
	if step <= 0 {
		step = c.size
	}

	for start, index := 0, 0; start < len(content); start, index = start+step, index+1 {
		end := start + c.size
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, &Chunk{
			ParentDocID: doc.ID,
			ChunkIndex:  index,
			Content:     content[start:end],
			Metadata:    doc.Metadata,
		})
		if end == len(content) {
			break
		}
	}
	return chunks, nil
}

// sentenceChunker splits on sentence boundaries, merging short sentences together
// up to maxSize, grounded on recursive.go's separator-hierarchy approach narrowed
// to a single level (sentence punctuation only).
type sentenceChunker struct {
	maxSize int
}

// NewSentenceChunker builds a Sentence chunker bounded by maxSize bytes per chunk.
func NewSentenceChunker(maxSize int) Chunker {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &sentenceChunker{maxSize: maxSize}
}

func (c *sentenceChunker) Name() string { return "sentence" }

func (c *sentenceChunker) Chunk(doc *Document) ([]*Chunk, error) {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	sentences := splitSentences(content)

	var chunks []*Chunk
	var current strings.Builder
	index := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text == "" {
			return
		}
		chunks = append(chunks, &Chunk{
			ParentDocID: doc.ID,
			ChunkIndex:  index,
			Content:     text,
			Metadata:    doc.Metadata,
		})
		index++
		current.Reset()
	}

	for _, s := range sentences {
		if current.Len() > 0 && current.Len()+len(s) > c.maxSize {
			flush()
		}
		current.WriteString(s)
	}
	flush()

	return chunks, nil
}

// splitSentences breaks text on '.', '?', '!' followed by whitespace, keeping the
// terminator with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '?', '!':
			if i+1 >= len(text) || text[i+1] == ' ' || text[i+1] == '\n' {
				end := i + 1
				if end < len(text) {
					end++ // absorb the trailing space
				}
				sentences = append(sentences, text[start:end])
				start = end
				i = end - 1
			}
		}
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}

// markdownChunker splits on Markdown heading/paragraph boundaries, optionally
// keeping fenced code blocks intact, grounded on recursive.go's MarkdownSeparators
// hierarchy.
type markdownChunker struct {
	size               int
	overlap            int
	preserveCodeBlocks bool
}

// NewMarkdownChunker builds a Markdown(preserveCodeBlocks) chunker.
func NewMarkdownChunker(size, overlap int, preserveCodeBlocks bool) Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap > size/2 {
		overlap = size / 2
	}
	return &markdownChunker{size: size, overlap: overlap, preserveCodeBlocks: preserveCodeBlocks}
}

func (c *markdownChunker) Name() string { return "markdown" }

func (c *markdownChunker) Chunk(doc *Document) ([]*Chunk, error) {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	units := splitMarkdownUnits(content, c.preserveCodeBlocks)

	var chunks []*Chunk
	var current strings.Builder
	index := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text == "" {
			return
		}
		chunks = append(chunks, &Chunk{ParentDocID: doc.ID, ChunkIndex: index, Content: text, Metadata: doc.Metadata})
		index++
		current.Reset()
	}

	for _, u := range units {
		if current.Len() > 0 && current.Len()+len(u) > c.size {
			flush()
		}
		current.WriteString(u)
		current.WriteString("\n")
	}
	flush()

	return chunks, nil
}

// splitMarkdownUnits splits on blank lines (paragraph breaks) while keeping any
// fenced code block (```...```) as a single unit when preserveCodeBlocks is set.
func splitMarkdownUnits(content string, preserveCodeBlocks bool) []string {
	lines := strings.Split(content, "\n")
	var units []string
	var current strings.Builder
	inFence := false

	flush := func() {
		text := current.String()
		if strings.TrimSpace(text) != "" {
			units = append(units, text)
		}
		current.Reset()
	}

	for _, line := range lines {
		if preserveCodeBlocks && strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				current.WriteString(line)
				current.WriteString("\n")
				flush()
				inFence = false
				continue
			}
			flush()
			inFence = true
		}

		if inFence {
			current.WriteString(line)
			current.WriteString("\n")
			continue
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")
	}
	flush()
	return units
}

// ValidateChunks checks only that no chunk exceeds maxSize bytes. Overlap is clamped
// to size/2 by the chunker constructors and is not checked here; neither is
// concatenation recovering the source.
func ValidateChunks(chunks []*Chunk, maxSize int) *errs.Error {
	for _, c := range chunks {
		if maxSize > 0 && len(c.Content) > maxSize {
			return errs.New(errs.KindValidation, "retrieval.ValidateChunks", "chunk exceeds maximum size")
		}
	}
	return nil
}
