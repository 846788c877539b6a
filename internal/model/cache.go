package model

// CacheMetadata is the durable descriptor of a named context cache.
// The descriptor is the only cross-process record of a cache; the
// primed state itself lives in blob storage and, when loaded, in
// process memory.
type CacheMetadata struct {
	// Name is the caller-chosen cache identity.
	Name string `json:"name" bson:"name"`

	// Model is the target model identifier.
	Model string `json:"model" bson:"model"`

	// ModelFile references the model artifact the state was primed for.
	ModelFile string `json:"model_file" bson:"model_file"`

	// Filters is the document-selection filter the cache was built
	// from. Nil when the cache was built from an explicit doc list
	// only.
	Filters map[string]any `json:"filters,omitempty" bson:"filters,omitempty"`

	// DocIDs is the deduplicated set of document ids included in the
	// primed state, in inclusion order.
	DocIDs []string `json:"doc_ids" bson:"doc_ids"`

	// StorageInfo locates the serialized primed state.
	StorageInfo StorageInfo `json:"storage_info" bson:"storage_info"`
}

// ContainsDoc reports whether the document is already part of the
// cache's recorded set.
func (c *CacheMetadata) ContainsDoc(docID string) bool {
	for _, id := range c.DocIDs {
		if id == docID {
			return true
		}
	}
	return false
}
