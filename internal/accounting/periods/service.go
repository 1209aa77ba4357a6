package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
)

// RepositoryPort abstracts storage for the service.
type RepositoryPort interface {
	FindByDate(ctx context.Context, companyID int64, date time.Time) (Period, error)
	Insert(ctx context.Context, p Period) (Period, error)
	Close(ctx context.Context, companyID, periodID, actorID int64) error
	List(ctx context.Context, companyID int64) ([]Period, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service guards postings against closed or missing periods and manages the
// period lifecycle.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// AssertOpen resolves the period covering date and fails unless it is open.
// Writers revalidate inside their own transaction; this is the cheap
// pre-check on the request path.
func (s *Service) AssertOpen(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	period, err := s.repo.FindByDate(ctx, companyID, date)
	if err != nil {
		return Period{}, err
	}
	if period.Status == StatusClosed {
		return Period{}, ErrPeriodClosed
	}
	return period, nil
}

// Create registers a new open period ahead of use.
func (s *Service) Create(ctx context.Context, p Period) (Period, error) {
	if p.CompanyID == 0 {
		return Period{}, errors.New("accounting: company required")
	}
	if p.Code == "" {
		return Period{}, errors.New("accounting: period code required")
	}
	if p.EndDate.Before(p.StartDate) {
		return Period{}, ErrInvalidRange
	}
	return s.repo.Insert(ctx, p)
}

// Close transitions a period OPEN to CLOSED. Irreversible: postings dated in
// the range are rejected from this point on, backdated corrections included.
func (s *Service) Close(ctx context.Context, companyID, periodID, actorID int64) error {
	if err := s.repo.Close(ctx, companyID, periodID, actorID); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:   actorID,
			CompanyID: companyID,
			Action:    "period.close",
			Entity:    "accounting_period",
			EntityID:  fmt.Sprintf("%d", periodID),
		})
	}
	return nil
}

// List returns the company's periods.
func (s *Service) List(ctx context.Context, companyID int64) ([]Period, error) {
	return s.repo.List(ctx, companyID)
}
