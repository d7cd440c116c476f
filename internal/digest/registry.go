package digest

import (
	"sort"
	"sync"

	"github.com/tsumugi-bot/tsumugi/internal/buffer"
)

// ArtifactRef points at a document created by a flush.
type ArtifactRef struct {
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
}

// ArtifactStatus is one entry of the registry snapshot.
type ArtifactStatus struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ArtifactRegistry remembers which conversation keys already have a
// document, so repeated triggers append instead of creating duplicates.
// Associations live for the process lifetime; keys are never retired.
// Lookup/Record pairs always run inside a Guard-held region.
type ArtifactRegistry struct {
	mu   sync.Mutex
	refs map[buffer.Key]ArtifactRef
}

func NewArtifactRegistry() *ArtifactRegistry {
	return &ArtifactRegistry{refs: map[buffer.Key]ArtifactRef{}}
}

func (r *ArtifactRegistry) Lookup(key buffer.Key) (ArtifactRef, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref, ok := r.refs[key]
	return ref, ok
}

func (r *ArtifactRegistry) Record(key buffer.Key, ref ArtifactRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[key] = ref
}

// Snapshot returns all known associations sorted by key, for the status
// endpoint.
func (r *ArtifactRegistry) Snapshot() []ArtifactStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ArtifactStatus, 0, len(r.refs))
	for k, ref := range r.refs {
		out = append(out, ArtifactStatus{Key: k.String(), URL: ref.URL})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
