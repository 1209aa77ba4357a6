package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/posting"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// JournalRemediationPayload mirrors the remediation flag recorded by the
// posting orchestrator.
type JournalRemediationPayload struct {
	RemediationID string    `json:"remediation_id"`
	CompanyID     int64     `json:"company_id"`
	RefType       string    `json:"ref_type"`
	RefID         string    `json:"ref_id"`
	Reason        string    `json:"reason"`
	FlaggedAt     time.Time `json:"flagged_at"`
}

// NewJournalRemediationTask constructs an Asynq task for a remediation flag.
func NewJournalRemediationTask(rem posting.Remediation) (*asynq.Task, error) {
	payload := JournalRemediationPayload{
		RemediationID: rem.ID.String(),
		CompanyID:     rem.CompanyID,
		RefType:       rem.RefType,
		RefID:         rem.RefID,
		Reason:        rem.Reason,
		FlaggedAt:     time.Now(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJournalRemediation, body, asynq.Queue(QueueDefault)), nil
}

// RemediationHandler consumes remediation notifications. It makes the
// failure visible; the reconciling journal entry stays a manual job.
type RemediationHandler struct {
	audit  AuditPort
	logger *slog.Logger
}

// AuditPort abstracts audit logging for job handlers.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewRemediationHandler constructs RemediationHandler.
func NewRemediationHandler(audit AuditPort, logger *slog.Logger) *RemediationHandler {
	return &RemediationHandler{audit: audit, logger: logger}
}

// Handle processes TaskJournalRemediation tasks.
func (h *RemediationHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload JournalRemediationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if h.logger != nil {
		h.logger.Error("journal remediation required",
			slog.String("remediation_id", payload.RemediationID),
			slog.Int64("company_id", payload.CompanyID),
			slog.String("ref_type", payload.RefType),
			slog.String("ref_id", payload.RefID),
			slog.String("reason", payload.Reason))
	}
	if h.audit != nil {
		if err := h.audit.Record(ctx, shared.AuditLog{
			CompanyID: payload.CompanyID,
			Action:    "journal.remediation",
			Entity:    payload.RefType,
			EntityID:  payload.RefID,
			Meta: map[string]any{
				"remediation_id": payload.RemediationID,
				"reason":         payload.Reason,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}
