package uploads

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// RepositoryPort abstracts issued-upload persistence.
type RepositoryPort interface {
	Record(ctx context.Context, u Upload) (Upload, error)
	ForEntity(ctx context.Context, entity string, entityID int64) ([]Upload, error)
	Recent(ctx context.Context, limit int) ([]Upload, error)
}

// PresignPort issues a PUT URL. Satisfied by Signer.
type PresignPort interface {
	SignPut(ctx context.Context, objectKey, contentType string) (string, error)
}

// Auditor is satisfied by shared.AuditSink.
type Auditor interface {
	Append(ctx context.Context, event shared.AuditEvent) error
}

// SignedUpload is the issued URL with its recorded metadata.
type SignedUpload struct {
	Upload Upload
	URL    string
}

// Service issues presigned upload URLs and tracks them.
type Service struct {
	repo   RepositoryPort
	signer PresignPort
	audit  Auditor
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, signer PresignPort, audit Auditor) *Service {
	return &Service{repo: repo, signer: signer, audit: audit}
}

// Issue signs a PUT URL for one attachment and records it.
func (s *Service) Issue(ctx context.Context, actorID int64, entity string, entityID int64, fileName, contentType string) (SignedUpload, error) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectKey, err := ObjectKey(entity, entityID, fileName)
	if err != nil {
		return SignedUpload{}, err
	}
	if s.signer == nil {
		return SignedUpload{}, fmt.Errorf("uploads: no storage backend configured")
	}
	url, err := s.signer.SignPut(ctx, objectKey, contentType)
	if err != nil {
		return SignedUpload{}, err
	}
	recorded, err := s.repo.Record(ctx, Upload{
		ObjectKey:   objectKey,
		Entity:      entity,
		EntityID:    entityID,
		FileName:    fileName,
		ContentType: contentType,
		IssuedBy:    actorID,
	})
	if err != nil {
		return SignedUpload{}, err
	}
	if s.audit != nil {
		_ = s.audit.Append(ctx, shared.AuditEvent{
			ActorID:  actorID,
			Action:   "uploads.sign",
			Entity:   "upload",
			EntityID: strconv.FormatInt(recorded.ID, 10),
			Meta:     map[string]any{"object_key": objectKey},
		})
	}
	return SignedUpload{Upload: recorded, URL: url}, nil
}

// ForEntity returns the issued uploads attached to one entity.
func (s *Service) ForEntity(ctx context.Context, entity string, entityID int64) ([]Upload, error) {
	return s.repo.ForEntity(ctx, entity, entityID)
}

// Recent returns the most recently issued uploads across all entities.
func (s *Service) Recent(ctx context.Context, limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.Recent(ctx, limit)
}
