package store

import (
	"fmt"
	"sort"
)

// Table names.
const (
	TableUsers                     = "users"
	TableRefreshTokens             = "refresh_tokens"
	TableAuditLogs                 = "audit_logs"
	TableStaff                     = "staff"
	TableChildren                  = "children"
	TableAttendance                = "attendance"
	TableEvents                    = "events"
	TableEventNotifications        = "event_notifications"
	TableAnnouncements             = "announcements"
	TableAnnouncementNotifications = "announcement_notifications"
	TableAbsenceNotifications      = "absence_notifications"
	TablePayments                  = "payments"
	TableStripeReceipts            = "stripe_receipts"
	TableStripePaymentHistory      = "stripe_payment_history"
	TableMedia                     = "media"
	TableMediaConsents             = "media_consents"
)

var schema = map[string][]string{
	TableUsers:                     {"id", "email", "password_hash", "full_name", "role", "phone", "address", "emergency_contact_name", "emergency_contact_phone", "is_active", "last_login", "created_at", "updated_at"},
	TableRefreshTokens:             {"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"},
	TableAuditLogs:                 {"id", "user_id", "action", "resource", "resource_id", "new_values", "ip_address", "user_agent", "created_at"},
	TableStaff:                     {"id", "full_name", "email", "phone", "role", "qualifications", "is_active", "hired_at", "created_at", "updated_at"},
	TableChildren:                  {"id", "first_name", "last_name", "dob", "gender", "allergies", "medical_notes", "emergency_contact_name", "emergency_contact_phone", "parent_id", "assigned_teacher_id", "is_active", "created_at", "updated_at"},
	TableAttendance:                {"id", "child_id", "date", "is_present", "check_in_time", "check_out_time", "notes", "marked_by", "created_at", "updated_at"},
	TableEvents:                    {"id", "title", "description", "event_datetime", "location", "created_by_id", "created_at", "updated_at"},
	TableEventNotifications:        {"id", "event_id", "parent_id", "is_read", "created_at"},
	TableAnnouncements:             {"id", "title", "content", "priority", "created_by_id", "published_at", "created_at", "updated_at"},
	TableAnnouncementNotifications: {"id", "announcement_id", "parent_id", "is_read", "created_at"},
	TableAbsenceNotifications:      {"id", "child_id", "parent_id", "date", "reason", "is_read", "created_at"},
	TablePayments:                  {"id", "parent_id", "child_id", "amount", "currency", "description", "status", "due_date", "payment_date", "stripe_payment_intent_id", "stripe_receipt_url", "created_at", "updated_at"},
	TableStripeReceipts:            {"id", "payment_id", "parent_id", "amount", "currency", "receipt_url", "status", "paid_at", "created_at"},
	TableStripePaymentHistory:      {"id", "payment_id", "parent_id", "event_type", "amount", "status", "occurred_at"},
	TableMedia:                     {"id", "child_id", "uploaded_by_id", "media_kind", "file_path", "content_type", "caption", "consent_granted", "created_at"},
	TableMediaConsents:             {"id", "child_id", "parent_id", "consent_granted", "consent_type", "usage_permissions", "created_at", "updated_at"},
}

var columnSets = func() map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{}, len(schema))
	for table, cols := range schema {
		set := make(map[string]struct{}, len(cols))
		for _, c := range cols {
			set[c] = struct{}{}
		}
		sets[table] = set
	}
	return sets
}()

// Columns returns the known columns of table in declaration order.
func Columns(table string) []string {
	return append([]string(nil), schema[table]...)
}

func checkTable(table string) error {
	if _, ok := columnSets[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	return nil
}

func checkColumns(table string, columns ...string) error {
	set, ok := columnSets[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	for _, c := range columns {
		if _, ok := set[c]; !ok {
			return fmt.Errorf("unknown column %q on %s", c, table)
		}
	}
	return nil
}

func validateQuery(q Query) error {
	if err := checkTable(q.Table); err != nil {
		return err
	}
	for _, f := range q.Filters {
		if err := checkColumns(q.Table, f.Column); err != nil {
			return err
		}
		switch f.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpIn, OpIs:
		default:
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	for _, s := range q.Sort {
		if err := checkColumns(q.Table, s.Column); err != nil {
			return err
		}
	}
	return nil
}

func validateRow(table string, row Row) ([]string, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("empty row for %s", table)
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	if err := checkColumns(table, cols...); err != nil {
		return nil, err
	}
	return cols, nil
}
