package journals

import (
	"context"
	"fmt"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	accshared "github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/shared"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// RepositoryPort abstracts storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, journalID int64) (Entry, error)
	List(ctx context.Context, companyID int64, limit int) ([]Entry, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts balanced journals with sequential per-(company, year)
// numbering.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Post validates the input and durably writes header plus all lines in one
// transaction. Partial posting is impossible to observe: number allocation,
// header and lines commit together or not at all.
func (s *Service) Post(ctx context.Context, input PostingInput) (Entry, error) {
	if err := input.Validate(); err != nil {
		return Entry{}, err
	}

	var posted Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForPosting(ctx, input.CompanyID, input.Date)
		if err != nil {
			return err
		}
		if period.Status == periods.StatusClosed {
			return periods.ErrPeriodClosed
		}
		if !period.Contains(input.Date) {
			return accshared.ErrDateOutOfRange
		}

		fiscalYear := input.Date.Year()
		number, err := tx.NextJournalNumber(ctx, input.CompanyID, fiscalYear)
		if err != nil {
			return err
		}

		entry := Entry{
			CompanyID:  input.CompanyID,
			FiscalYear: fiscalYear,
			Number:     number,
			JournalNo:  FormatJournalNo(fiscalYear, number),
			PeriodID:   period.ID,
			Date:       input.Date,
			RefType:    input.RefType,
			RefID:      input.RefID,
			RefNumber:  input.RefNumber,
			Memo:       input.Memo,
			CreatedBy:  input.CreatedBy,
		}
		inserted, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		lines, err := tx.InsertLines(ctx, inserted.ID, input.Lines)
		if err != nil {
			return err
		}
		inserted.Lines = lines
		posted = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   input.CreatedBy,
			CompanyID: input.CompanyID,
			Action:    "journal.post",
			Entity:    "journal_entry",
			EntityID:  fmt.Sprintf("%d", posted.ID),
			Meta: map[string]any{
				"journal_no": posted.JournalNo,
				"ref_type":   input.RefType,
				"ref_id":     input.RefID,
			},
		})
	}
	return posted, nil
}

// Get returns one journal with lines.
func (s *Service) Get(ctx context.Context, companyID, journalID int64) (Entry, error) {
	return s.repo.Get(ctx, companyID, journalID)
}

// List returns journal headers, newest first.
func (s *Service) List(ctx context.Context, companyID int64, limit int) ([]Entry, error) {
	return s.repo.List(ctx, companyID, limit)
}
