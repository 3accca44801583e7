package jobs

import (
	"context"
	"fmt"

	"github.com/schoolyard-app/schoolyard/internal/admissions"
)

// OfferMailer queues an offer email when an admission inquiry reaches the
// offered stage. Satisfies admissions.Notifier.
type OfferMailer struct {
	Client *Client
}

// OfferExtended enqueues the offer notice for the applicant's guardian.
func (m *OfferMailer) OfferExtended(ctx context.Context, q admissions.Inquiry) error {
	if m == nil || m.Client == nil || q.Email == "" {
		return nil
	}
	_, err := m.Client.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      q.Email,
		Subject: fmt.Sprintf("Admission offer for %s", q.ChildName),
		Body: fmt.Sprintf(
			"Dear %s,\n\nWe are pleased to offer %s a place in %s. "+
				"Please reply to this message or visit the school office to confirm enrolment.\n\n"+
				"Reference: %s\n",
			q.GuardianName, q.ChildName, q.ClassApplied, q.Reference),
	})
	return err
}
