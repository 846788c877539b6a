// Package access evaluates per-document authorization. It is a pure
// predicate layer: ownership is the access primitive and metadata
// filters only ever narrow the readable set, never widen it.
package access

import (
	"github.com/kart-io/databridge/internal/model"
)

// Level is a per-document permission level.
type Level string

const (
	LevelRead  Level = "read"
	LevelWrite Level = "write"
	LevelAdmin Level = "admin"
)

// Authorized reports whether the caller may act on the document at the
// given level. The owner always has full access; otherwise the
// caller's entity id must appear in the matching access-control set.
func Authorized(auth model.AuthContext, doc *model.Document, level Level) bool {
	if doc == nil {
		return false
	}
	if doc.Owner.ID == auth.EntityID {
		return true
	}

	switch level {
	case LevelRead:
		return contains(doc.AccessControl.Readers, auth.EntityID)
	case LevelWrite:
		return contains(doc.AccessControl.Writers, auth.EntityID)
	case LevelAdmin:
		return contains(doc.AccessControl.Admins, auth.EntityID)
	default:
		return false
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
