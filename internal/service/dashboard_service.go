package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/creche-api/internal/models"
	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

type activeCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type attendanceCounter interface {
	CountForDate(ctx context.Context, date models.Date) (present, absent int, err error)
}

type outstandingSummer interface {
	SumOutstanding(ctx context.Context) (pending, overdue int, amount float64, err error)
}

type upcomingEvents interface {
	Upcoming(ctx context.Context, limit int) ([]models.Event, error)
}

type parentPayments interface {
	ListForParent(ctx context.Context, parentID string, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error)
}

type unreadCounter interface {
	CountUnread(ctx context.Context, parentID string) (int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL            time.Duration
	UpcomingEventsLimit int
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Children      activeCounter
	ChildDir      childDirectory
	Staff         activeCounter
	Parents       parentDirectory
	Attendance    attendanceCounter
	Payments      outstandingSummer
	ParentPayment parentPayments
	Events        upcomingEvents
	Notifications unreadCounter
	Cache         *CacheService
	Logger        *zap.Logger
	Config        DashboardServiceConfig
}

// DashboardService composes the admin and parent landing screens.
type DashboardService struct {
	p      DashboardServiceParams
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.UpcomingEventsLimit <= 0 {
		cfg.UpcomingEventsLimit = 5
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{p: params, cache: params.Cache, logger: logger, now: time.Now, cfg: cfg}
}

// Admin returns today's summary and whether it came from cache.
func (s *DashboardService) Admin(ctx context.Context) (*models.DashboardSummary, bool, error) {
	today := models.NewDate(s.now().UTC())
	var summary models.DashboardSummary
	hit, err := s.cache.Remember(ctx, CacheKey("dash", "admin", today.String()), s.cfg.CacheTTL, &summary, func(ctx context.Context) error {
		built, err := s.composeAdmin(ctx, today)
		if err != nil {
			return err
		}
		summary = *built
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &summary, hit, nil
}

// composeAdmin runs the independent counts concurrently; the first failure
// cancels the rest.
func (s *DashboardService) composeAdmin(ctx context.Context, today models.Date) (*models.DashboardSummary, error) {
	summary := &models.DashboardSummary{Date: today, GeneratedAt: s.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		if summary.ActiveChildren, err = s.p.Children.CountActive(gctx); err != nil {
			return appErrors.Internal(err, "failed to count children")
		}
		return nil
	})
	g.Go(func() (err error) {
		if summary.ActiveStaff, err = s.p.Staff.CountActive(gctx); err != nil {
			return appErrors.Internal(err, "failed to count staff")
		}
		return nil
	})
	g.Go(func() error {
		parents, err := s.p.Parents.ListActiveParentIDs(gctx)
		if err != nil {
			return appErrors.Internal(err, "failed to count parents")
		}
		summary.ActiveParents = len(parents)
		return nil
	})
	g.Go(func() (err error) {
		if summary.PresentToday, summary.AbsentToday, err = s.p.Attendance.CountForDate(gctx, today); err != nil {
			return appErrors.Internal(err, "failed to count attendance")
		}
		return nil
	})
	g.Go(func() (err error) {
		if summary.PendingPayments, summary.OverduePayments, summary.OutstandingAmount, err = s.p.Payments.SumOutstanding(gctx); err != nil {
			return appErrors.Internal(err, "failed to sum payments")
		}
		return nil
	})
	g.Go(func() (err error) {
		summary.UpcomingEvents, err = s.p.Events.Upcoming(gctx, s.cfg.UpcomingEventsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if unmarked := summary.ActiveChildren - summary.PresentToday - summary.AbsentToday; unmarked > 0 {
		summary.UnmarkedToday = unmarked
	}
	return summary, nil
}

// Parent returns the landing data for one parent.
func (s *DashboardService) Parent(ctx context.Context, parentID string) (*models.ParentDashboard, error) {
	children, err := parentChildren(ctx, s.p.ChildDir, parentID, s.logger)
	if err != nil {
		return nil, err
	}
	unread, err := s.p.Notifications.CountUnread(ctx, parentID)
	if err != nil {
		return nil, err
	}
	pending := models.PaymentStatusPending
	_, pg, err := s.p.ParentPayment.ListForParent(ctx, parentID, models.PaymentFilter{Status: &pending, PageSize: 1})
	if err != nil {
		return nil, err
	}
	events, err := s.p.Events.Upcoming(ctx, s.cfg.UpcomingEventsLimit)
	if err != nil {
		return nil, err
	}
	return &models.ParentDashboard{
		Children:            children,
		UnreadNotifications: unread,
		PendingPayments:     pg.TotalCount,
		UpcomingEvents:      events,
	}, nil
}
