package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	periods []Period
	nextID  int64
}

func (r *memoryRepo) FindByDate(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	for _, p := range r.periods {
		if p.CompanyID == companyID && p.Contains(date) {
			return p, nil
		}
	}
	return Period{}, ErrPeriodNotFound
}

func (r *memoryRepo) Insert(ctx context.Context, p Period) (Period, error) {
	for _, existing := range r.periods {
		if existing.CompanyID != p.CompanyID {
			continue
		}
		if !p.EndDate.Before(existing.StartDate) && !p.StartDate.After(existing.EndDate) {
			return Period{}, ErrPeriodOverlap
		}
	}
	r.nextID++
	p.ID = r.nextID
	p.Status = StatusOpen
	r.periods = append(r.periods, p)
	return p, nil
}

func (r *memoryRepo) Close(ctx context.Context, companyID, periodID, actorID int64) error {
	for i, p := range r.periods {
		if p.CompanyID != companyID || p.ID != periodID {
			continue
		}
		if p.Status == StatusClosed {
			return ErrPeriodAlreadyClosed
		}
		now := time.Now()
		r.periods[i].Status = StatusClosed
		r.periods[i].ClosedAt = &now
		r.periods[i].ClosedBy = &actorID
		return nil
	}
	return ErrPeriodNotFound
}

func (r *memoryRepo) List(ctx context.Context, companyID int64) ([]Period, error) {
	out := make([]Period, 0, len(r.periods))
	for _, p := range r.periods {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func march2026() Period {
	return Period{
		CompanyID: 1,
		Code:      "2026-03",
		StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestContains(t *testing.T) {
	p := march2026()
	require.True(t, p.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, p.Contains(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
	require.True(t, p.Contains(time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)))
	require.False(t, p.Contains(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)))
	require.False(t, p.Contains(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCreateRejectsInvalidRange(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil)

	p := march2026()
	p.StartDate, p.EndDate = p.EndDate, p.StartDate
	_, err := svc.Create(context.Background(), p)
	require.ErrorIs(t, err, ErrInvalidRange)
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc := NewService(&memoryRepo{}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, march2026())
	require.NoError(t, err)

	overlapping := march2026()
	overlapping.Code = "2026-03b"
	overlapping.StartDate = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	overlapping.EndDate = time.Date(2026, 4, 19, 0, 0, 0, 0, time.UTC)
	_, err = svc.Create(ctx, overlapping)
	require.ErrorIs(t, err, ErrPeriodOverlap)
}

func TestCloseIsOneWay(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, march2026())
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, 1, created.ID, 7))
	require.ErrorIs(t, svc.Close(ctx, 1, created.ID, 7), ErrPeriodAlreadyClosed)

	_, err = svc.AssertOpen(ctx, 1, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrPeriodClosed)
}

func TestAssertOpen(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.AssertOpen(ctx, 1, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrPeriodNotFound)

	created, err := svc.Create(ctx, march2026())
	require.NoError(t, err)

	got, err := svc.AssertOpen(ctx, 1, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
}
