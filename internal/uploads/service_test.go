package uploads

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

type memoryRepo struct {
	nextID  int64
	records []Upload
}

func (r *memoryRepo) Record(ctx context.Context, u Upload) (Upload, error) {
	r.nextID++
	u.ID = r.nextID
	r.records = append(r.records, u)
	return u, nil
}

func (r *memoryRepo) ForEntity(ctx context.Context, entity string, entityID int64) ([]Upload, error) {
	var result []Upload
	for _, u := range r.records {
		if u.Entity == entity && u.EntityID == entityID {
			result = append(result, u)
		}
	}
	return result, nil
}

func (r *memoryRepo) Recent(ctx context.Context, limit int) ([]Upload, error) {
	if len(r.records) <= limit {
		return r.records, nil
	}
	return r.records[len(r.records)-limit:], nil
}

type stubSigner struct {
	lastKey string
}

func (s *stubSigner) SignPut(ctx context.Context, objectKey, contentType string) (string, error) {
	s.lastKey = objectKey
	return "https://storage.test/" + objectKey + "?signed=1", nil
}

type recordingAuditor struct {
	events []shared.AuditEvent
}

func (a *recordingAuditor) Append(ctx context.Context, event shared.AuditEvent) error {
	a.events = append(a.events, event)
	return nil
}

func TestObjectKeyNamespacesPerEntity(t *testing.T) {
	key, err := ObjectKey("student", 42, "report card.pdf")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key, "student/42/"))
	require.True(t, strings.HasSuffix(key, "-report card.pdf"))

	other, err := ObjectKey("student", 42, "report card.pdf")
	require.NoError(t, err)
	require.NotEqual(t, key, other, "repeated uploads must get distinct keys")
}

func TestObjectKeyRejectsBadInput(t *testing.T) {
	_, err := ObjectKey("invoice", 1, "a.pdf")
	require.Error(t, err)
	_, err = ObjectKey("student", 0, "a.pdf")
	require.Error(t, err)
	_, err = ObjectKey("student", 1, "")
	require.Error(t, err)
}

func TestObjectKeyStripsPathSegments(t *testing.T) {
	key, err := ObjectKey("staff", 7, "../../etc/passwd")
	require.NoError(t, err)
	require.NotContains(t, key, "..")
	require.True(t, strings.HasPrefix(key, "staff/7/"))
	require.True(t, strings.HasSuffix(key, "-passwd"))
}

func TestIssueSignsRecordsAndAudits(t *testing.T) {
	repo := &memoryRepo{}
	signer := &stubSigner{}
	auditor := &recordingAuditor{}
	svc := NewService(repo, signer, auditor)

	signed, err := svc.Issue(context.Background(), 3, "admission", 11, "birth-cert.jpg", "")
	require.NoError(t, err)
	require.Equal(t, signer.lastKey, signed.Upload.ObjectKey)
	require.Contains(t, signed.URL, signed.Upload.ObjectKey)
	require.Equal(t, "application/octet-stream", signed.Upload.ContentType)
	require.Equal(t, int64(3), signed.Upload.IssuedBy)

	listed, err := svc.ForEntity(context.Background(), "admission", 11)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.Len(t, auditor.events, 1)
	require.Equal(t, "uploads.sign", auditor.events[0].Action)
}

func TestIssueWithoutBackend(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil, nil)
	_, err := svc.Issue(context.Background(), 1, "student", 1, "photo.png", "image/png")
	require.Error(t, err)
}
