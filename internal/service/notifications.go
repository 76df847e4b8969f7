package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tripdesk/backend/internal/models"
)

// enqueueAssignment writes a lead_assigned notification to the outbox. Called
// inside the transaction that stores the assignment, so the email exists iff
// the assignment does.
func enqueueAssignment(ctx context.Context, store NotificationStore, rep models.User, lead models.Lead, assignedBy, mode string, now time.Time) error {
	payload, err := json.Marshal(models.LeadAssignmentPayload{
		SalesRepID:     rep.ID,
		SalesRepEmail:  rep.Email,
		SalesRepName:   rep.Name,
		LeadID:         lead.ID,
		LeadName:       lead.Name,
		LeadEmail:      lead.Email,
		Destination:    lead.Destination,
		TravelDate:     lead.TravelDate,
		AssignedBy:     assignedBy,
		AssignmentMode: mode,
	})
	if err != nil {
		return err
	}
	return store.EnqueueNotification(ctx, models.Notification{
		ID:            uuid.NewString(),
		Kind:          models.NotificationLeadAssigned,
		Recipient:     rep.Email,
		Payload:       payload,
		Status:        models.NotificationPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	})
}
