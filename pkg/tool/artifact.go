package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexuscore/agentkit/pkg/errs"
)

// Artifact is non-textual side output a Handler produced alongside its primary JSON
// Result — a file, an image, a generated document. Adapted from
// internal/artifacts.{LocalStore,RedactionPolicy}, trimmed of the teacher's
// channel-upload plumbing and object-store proto types: this module only needs local
// storage of tool byproducts plus the same secret-redaction discipline the teacher
// applies before anything leaves the process.
type Artifact struct {
	ID        string
	Type      string
	MimeType  string
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// ArtifactStore persists Artifacts to the local filesystem, keyed by content type and
// creation date the way internal/artifacts/local_store.go lays out its tree.
type ArtifactStore struct {
	mu       sync.RWMutex
	basePath string
}

// NewArtifactStore creates (if absent) basePath and returns a store rooted there.
func NewArtifactStore(basePath string) (*ArtifactStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("tool: create artifact directory: %w", err)
	}
	return &ArtifactStore{basePath: basePath}, nil
}

// Put writes data to the store under a type/year/month/day tree and returns the
// resulting Artifact.
func (s *ArtifactStore) Put(ctx context.Context, artifactType, mimeType string, data io.Reader) (*Artifact, *errs.Error) {
	if artifactType == "" {
		artifactType = "unknown"
	}
	now := time.Now()
	dir := filepath.Join(s.basePath, artifactType,
		fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), fmt.Sprintf("%02d", now.Day()))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "tool.ArtifactStore.Put", err)
	}

	id := uuid.NewString()
	path := filepath.Join(dir, id)
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "tool.ArtifactStore.Put", err)
	}
	defer f.Close()

	n, err := io.Copy(f, data)
	if err != nil {
		return nil, errs.Wrap(errs.KindProcessing, "tool.ArtifactStore.Put", err)
	}

	return &Artifact{
		ID:        id,
		Type:      artifactType,
		MimeType:  mimeType,
		Path:      path,
		SizeBytes: n,
		CreatedAt: now,
	}, nil
}

// Open returns a reader over a, for handler code that needs to re-read its own
// output (e.g. a guardrail inspecting artifact bytes).
func (s *ArtifactStore) Open(a *Artifact) (io.ReadCloser, error) {
	return os.Open(a.Path)
}

// RedactionPolicy decides whether an Artifact's metadata should be scrubbed before it
// is referenced in a trace event or transcript, by type, MIME type, or filename
// pattern — the same three axes internal/artifacts/redaction.go checks.
type RedactionPolicy struct {
	types            map[string]struct{}
	mimePrefixes     []string
	mimeExact        map[string]struct{}
	filenamePatterns []*regexp.Regexp
}

// NewRedactionPolicy compiles a policy from raw rule lists.
func NewRedactionPolicy(types, mimeTypes, filenamePatterns []string) (*RedactionPolicy, error) {
	p := &RedactionPolicy{
		types:     map[string]struct{}{},
		mimeExact: map[string]struct{}{},
	}
	for _, t := range types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			p.types[t] = struct{}{}
		}
	}
	for _, m := range mimeTypes {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(m, "/*"); ok {
			p.mimePrefixes = append(p.mimePrefixes, prefix+"/")
			continue
		}
		p.mimeExact[m] = struct{}{}
	}
	for _, pat := range filenamePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("tool: compile filename pattern %q: %w", pat, err)
		}
		p.filenamePatterns = append(p.filenamePatterns, re)
	}
	return p, nil
}

// ShouldRedact reports whether a matches the policy and its path should not be
// surfaced verbatim.
func (p *RedactionPolicy) ShouldRedact(a *Artifact) bool {
	if p == nil {
		return false
	}
	if _, ok := p.types[strings.ToLower(a.Type)]; ok {
		return true
	}
	mime := strings.ToLower(a.MimeType)
	if _, ok := p.mimeExact[mime]; ok {
		return true
	}
	for _, prefix := range p.mimePrefixes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	base := filepath.Base(a.Path)
	for _, re := range p.filenamePatterns {
		if re.MatchString(base) {
			return true
		}
	}
	return false
}
