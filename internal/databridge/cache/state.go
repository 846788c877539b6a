// Package cache holds the primed LLM context state behind named
// caches. The state is the serializable unit the cache manager
// persists to blob storage and loads into process memory.
package cache

import (
	"strings"

	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
	"github.com/kart-io/databridge/pkg/utils/json"
)

// StateVersion is the current serialization format version. Loads of
// a different version fail instead of misreading the blob.
const StateVersion = 1

// DocContent is one document's contribution to a primed state, in
// inclusion order.
type DocContent struct {
	DocID   string `json:"doc_id"`
	Content string `json:"content"`
}

// State is the primed context for one cache: the ordered document
// contents the model context was built over. Appending new documents
// never touches previously primed entries.
type State struct {
	Version   int          `json:"version"`
	Model     string       `json:"model"`
	ModelFile string       `json:"model_file"`
	Docs      []DocContent `json:"docs"`
}

// NewState creates an empty primed state for a model/artifact pair.
func NewState(model, modelFile string) *State {
	return &State{
		Version:   StateVersion,
		Model:     model,
		ModelFile: modelFile,
	}
}

// AddDoc appends a document's content. Append-only: existing entries
// are never rewritten.
func (s *State) AddDoc(docID, content string) {
	s.Docs = append(s.Docs, DocContent{DocID: docID, Content: content})
}

// ContainsDoc reports whether the document is already primed.
func (s *State) ContainsDoc(docID string) bool {
	for _, d := range s.Docs {
		if d.DocID == docID {
			return true
		}
	}
	return false
}

// ContextChunks returns the primed contents in inclusion order, ready
// to be used as completion context.
func (s *State) ContextChunks() []string {
	chunks := make([]string, len(s.Docs))
	for i, d := range s.Docs {
		chunks[i] = d.Content
	}
	return chunks
}

// TokenCount approximates the primed token count by whitespace-split
// word count across all documents.
func (s *State) TokenCount() int {
	count := 0
	for _, d := range s.Docs {
		count += len(strings.Fields(d.Content))
	}
	return count
}

// Serialize encodes the state for blob storage.
func (s *State) Serialize() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, utilerrors.ErrCacheStateBroken.WithCause(err)
	}
	return data, nil
}

// Deserialize decodes a serialized state and validates its version.
func Deserialize(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, utilerrors.ErrCacheStateBroken.WithCause(err)
	}
	if s.Version != StateVersion {
		return nil, utilerrors.ErrCacheStateBroken.WithMessagef("unsupported cache state version %d", s.Version)
	}
	return &s, nil
}

// StateKey returns the deterministic blob key for a cache's serialized
// state.
func StateKey(name string) string {
	return name + "_state"
}
