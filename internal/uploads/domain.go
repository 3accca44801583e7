package uploads

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// URLExpiry is how long an issued upload URL stays valid.
const URLExpiry = 15 * time.Minute

// entities that uploads may attach to.
var allowedEntities = map[string]bool{
	"student":   true,
	"staff":     true,
	"admission": true,
}

// Entities lists the attachment targets the picker offers.
func Entities() []string {
	names := make([]string, 0, len(allowedEntities))
	for name := range allowedEntities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upload is a record of a presigned URL we issued. The client PUTs the
// object directly; we only track the key and who asked for it.
type Upload struct {
	ID          int64
	ObjectKey   string
	Entity      string
	EntityID    int64
	FileName    string
	ContentType string
	IssuedBy    int64
	IssuedAt    time.Time
}

// ObjectKey builds the namespaced key for an entity attachment. The
// uuid segment keeps repeated uploads of the same filename distinct.
func ObjectKey(entity string, entityID int64, fileName string) (string, error) {
	if !allowedEntities[entity] {
		return "", fmt.Errorf("uploads: unknown entity %q", entity)
	}
	if entityID <= 0 {
		return "", fmt.Errorf("uploads: entity id required")
	}
	base := path.Base(strings.TrimSpace(fileName))
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("uploads: file name required")
	}
	return fmt.Sprintf("%s/%d/%s-%s", entity, entityID, uuid.NewString(), base), nil
}
