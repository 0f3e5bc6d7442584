package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/internal/store"
)

var (
	eventNotificationKey        = []string{"event_id", "parent_id"}
	announcementNotificationKey = []string{"announcement_id", "parent_id"}
	absenceNotificationKey      = []string{"child_id", "parent_id", "date"}
)

// NotificationRepository stores the per-parent notification rows.
type NotificationRepository struct {
	store store.Store
}

func NewNotificationRepository(s store.Store) *NotificationRepository {
	return &NotificationRepository{store: s}
}

// TableFor maps a notification kind to its table.
func TableFor(kind models.NotificationKind) (string, error) {
	switch kind {
	case models.NotificationEvent:
		return store.TableEventNotifications, nil
	case models.NotificationAnnouncement:
		return store.TableAnnouncementNotifications, nil
	case models.NotificationAbsence:
		return store.TableAbsenceNotifications, nil
	default:
		return "", fmt.Errorf("unknown notification kind %q", kind)
	}
}

func notificationQuery(table string, filter models.NotificationFilter) store.Query {
	q := store.Query{
		Table:   table,
		Filters: []store.Filter{store.Eq("parent_id", filter.ParentID)},
		Sort:    []store.Sort{{Column: "created_at", Desc: true}},
	}
	if filter.UnreadOnly {
		q = q.Where(store.Eq("is_read", false))
	}
	return page(q, filter.Page, filter.PageSize)
}

func (r *NotificationRepository) ListEvent(ctx context.Context, filter models.NotificationFilter) ([]models.EventNotification, int, error) {
	return listWithTotal[models.EventNotification](ctx, r.store, notificationQuery(store.TableEventNotifications, filter), "event notifications")
}

func (r *NotificationRepository) ListAnnouncement(ctx context.Context, filter models.NotificationFilter) ([]models.AnnouncementNotification, int, error) {
	return listWithTotal[models.AnnouncementNotification](ctx, r.store, notificationQuery(store.TableAnnouncementNotifications, filter), "announcement notifications")
}

func (r *NotificationRepository) ListAbsence(ctx context.Context, filter models.NotificationFilter) ([]models.AbsenceNotification, int, error) {
	return listWithTotal[models.AbsenceNotification](ctx, r.store, notificationQuery(store.TableAbsenceNotifications, filter), "absence notifications")
}

// MarkRead flags one notification as read. The parent filter makes a foreign id a miss.
func (r *NotificationRepository) MarkRead(ctx context.Context, kind models.NotificationKind, id, parentID string) error {
	table, err := TableFor(kind)
	if err != nil {
		return err
	}
	filters := []store.Filter{store.Eq("id", id), store.Eq("parent_id", parentID)}
	return r.store.Update(ctx, table, filters, store.Row{"is_read": true}, nil)
}

// CountUnread sums unread rows across every notification table for parentID.
func (r *NotificationRepository) CountUnread(ctx context.Context, parentID string) (int, error) {
	total := 0
	for _, table := range []string{store.TableEventNotifications, store.TableAnnouncementNotifications, store.TableAbsenceNotifications} {
		q := store.Query{Table: table, Filters: []store.Filter{store.Eq("parent_id", parentID), store.Eq("is_read", false)}}
		n, err := r.store.Count(ctx, q)
		if err != nil {
			return 0, fmt.Errorf("count unread %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// FanOutEvent creates one event notification per parent. Existing deliveries are kept.
func (r *NotificationRepository) FanOutEvent(ctx context.Context, eventID string, parentIDs []string) (int, error) {
	now := time.Now().UTC()
	rows := make([]store.Row, 0, len(parentIDs))
	for _, pid := range parentIDs {
		rows = append(rows, store.Row{"id": newID(""), "event_id": eventID, "parent_id": pid, "is_read": false, "created_at": now})
	}
	return r.store.InsertIgnore(ctx, store.TableEventNotifications, eventNotificationKey, rows)
}

// FanOutAnnouncement creates one announcement notification per parent.
func (r *NotificationRepository) FanOutAnnouncement(ctx context.Context, announcementID string, parentIDs []string) (int, error) {
	now := time.Now().UTC()
	rows := make([]store.Row, 0, len(parentIDs))
	for _, pid := range parentIDs {
		rows = append(rows, store.Row{"id": newID(""), "announcement_id": announcementID, "parent_id": pid, "is_read": false, "created_at": now})
	}
	return r.store.InsertIgnore(ctx, store.TableAnnouncementNotifications, announcementNotificationKey, rows)
}

// CreateAbsence records an absence notice; a repeat for the same child and day is ignored.
func (r *NotificationRepository) CreateAbsence(ctx context.Context, n *models.AbsenceNotification) (int, error) {
	n.ID = newID(n.ID)
	stamp(&n.CreatedAt, nil)
	row := store.Row{
		"id":         n.ID,
		"child_id":   n.ChildID,
		"parent_id":  n.ParentID,
		"date":       n.Date,
		"reason":     n.Reason,
		"is_read":    false,
		"created_at": n.CreatedAt,
	}
	return r.store.InsertIgnore(ctx, store.TableAbsenceNotifications, absenceNotificationKey, []store.Row{row})
}
