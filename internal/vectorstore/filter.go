package vectorstore

import (
	"fmt"
	"regexp"

	"github.com/memforge/memengine/internal/qdrant"
)

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// metadataKeys are the payload fields every record is indexed under,
// independent of the backend, so that both chromem and Qdrant apply the
// same Query filters.
const (
	keyTenantID = "tenant_id"
	keyAgentID  = "agent_id"
	keyType     = "type"
	keyTags     = "tags"
)

// chromemWhereFilter builds a chromem-go metadata where-filter from q.
// chromem matches string equality per key, so tag membership is encoded
// as one key per tag (tag:<name> = "1").
func chromemWhereFilter(q Query) map[string]string {
	filter := map[string]string{keyTenantID: q.TenantID}
	if q.AgentID != "" {
		filter[keyAgentID] = q.AgentID
	}
	if q.Type != "" {
		filter[keyType] = string(q.Type)
	}
	for _, tag := range q.Tags {
		filter["tag:"+tag] = "1"
	}
	return filter
}

// qdrantFilter builds a Qdrant payload filter from q.
func qdrantFilter(q Query) *qdrant.Filter {
	f := &qdrant.Filter{
		Must: []qdrant.Condition{{Field: keyTenantID, Match: q.TenantID}},
	}
	if q.AgentID != "" {
		f.Must = append(f.Must, qdrant.Condition{Field: keyAgentID, Match: q.AgentID})
	}
	if q.Type != "" {
		f.Must = append(f.Must, qdrant.Condition{Field: keyType, Match: string(q.Type)})
	}
	for _, tag := range q.Tags {
		f.Must = append(f.Must, qdrant.Condition{Field: "tag:" + tag, Match: "1"})
	}
	return f
}
