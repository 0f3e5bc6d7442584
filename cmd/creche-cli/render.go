package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/client"
)

var (
	faint = color.New(color.Faint).SprintFunc()
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
	amber = color.New(color.FgYellow).SprintFunc()
)

type table[T any] struct {
	headers []string
	row     func(T) []string
}

// show loads one screen and prints it; an empty list is a normal state.
func show[T any](ctx context.Context, out io.Writer, loader *client.Loader[T], t table[T]) error {
	defer loader.Close()
	st := loader.Refresh(ctx)
	if st.Err != nil {
		return st.Err
	}
	if st.Status == client.StatusEmpty {
		fmt.Fprintln(out, faint("nothing here yet"))
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, bold(strings.Join(t.headers, "\t")))
	for _, r := range st.Rows {
		fmt.Fprintln(w, strings.Join(t.row(r), "\t"))
	}
	return w.Flush()
}

func presence(present bool) string {
	if present {
		return green("present")
	}
	return red("absent")
}

// paymentStatus prints the stored status verbatim; due dates never change it.
func paymentStatus(s models.PaymentStatus) string {
	switch s {
	case models.PaymentStatusPaid:
		return green(string(s))
	case models.PaymentStatusOverdue:
		return red(string(s))
	default:
		return amber(string(s))
	}
}

func dateOrDash(d *models.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.String()
}

var childTable = table[models.Child]{
	headers: []string{"ID", "NAME", "BORN", "ALLERGIES", "ACTIVE"},
	row: func(c models.Child) []string {
		return []string{c.ID, c.FullName(), c.DOB.String(), c.Allergies, fmt.Sprint(c.IsActive)}
	},
}

var attendanceTable = table[models.Attendance]{
	headers: []string{"DATE", "CHILD", "STATUS", "NOTES"},
	row: func(a models.Attendance) []string {
		return []string{a.Date.String(), a.ChildID, presence(a.IsPresent), a.Notes}
	},
}

var eventTable = table[models.Event]{
	headers: []string{"WHEN", "TITLE", "WHERE"},
	row: func(e models.Event) []string {
		return []string{e.EventDatetime.Local().Format("2006-01-02 15:04"), e.Title, e.Location}
	},
}

var announcementTable = table[models.Announcement]{
	headers: []string{"PUBLISHED", "PRIORITY", "TITLE"},
	row: func(a models.Announcement) []string {
		return []string{a.PublishedAt.Local().Format("2006-01-02"), string(a.Priority), a.Title}
	},
}

var paymentTable = table[models.Payment]{
	headers: []string{"ID", "AMOUNT", "STATUS", "DUE", "DESCRIPTION"},
	row: func(p models.Payment) []string {
		return []string{p.ID, fmt.Sprintf("%.2f %s", p.Amount, p.Currency), paymentStatus(p.Status), dateOrDash(p.DueDate), p.Description}
	},
}

var mediaTable = table[models.MediaItem]{
	headers: []string{"ID", "CHILD", "KIND", "CAPTION", "LINK"},
	row: func(m models.MediaItem) []string {
		return []string{m.ID, m.ChildID, string(m.MediaKind), m.Caption, m.URL}
	},
}

var consentTable = table[models.MediaConsent]{
	headers: []string{"CHILD", "TYPE", "GRANTED", "USAGE"},
	row: func(c models.MediaConsent) []string {
		return []string{c.ChildID, string(c.ConsentType), fmt.Sprint(c.ConsentGranted), strings.Join(c.UsagePermissions, ",")}
	},
}

var notificationTable = table[models.EventNotification]{
	headers: []string{"ID", "EVENT", "READ", "RECEIVED"},
	row: func(n models.EventNotification) []string {
		return []string{n.ID, n.EventID, fmt.Sprint(n.IsRead), n.CreatedAt.Local().Format("2006-01-02 15:04")}
	},
}

func renderAdminDashboard(out io.Writer, d *models.DashboardSummary) {
	fmt.Fprintln(out, bold("Admin dashboard"), faint(d.Date.String()))
	fmt.Fprintf(out, "children %d  parents %d  staff %d\n", d.ActiveChildren, d.ActiveParents, d.ActiveStaff)
	fmt.Fprintf(out, "today: %s %d  %s %d  unmarked %d\n", green("present"), d.PresentToday, red("absent"), d.AbsentToday, d.UnmarkedToday)
	fmt.Fprintf(out, "payments: %s %d  %s %d  outstanding %.2f\n", amber("pending"), d.PendingPayments, red("overdue"), d.OverduePayments, d.OutstandingAmount)
	renderUpcoming(out, d.UpcomingEvents)
}

func renderParentDashboard(out io.Writer, d *models.ParentDashboard) {
	fmt.Fprintln(out, bold("Parent dashboard"))
	for _, c := range d.Children {
		fmt.Fprintln(out, " -", c.FullName())
	}
	fmt.Fprintf(out, "unread notifications %d  pending payments %d\n", d.UnreadNotifications, d.PendingPayments)
	renderUpcoming(out, d.UpcomingEvents)
}

func renderUpcoming(out io.Writer, events []models.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, faint("no upcoming events"))
		return
	}
	fmt.Fprintln(out, bold("upcoming"))
	for _, e := range events {
		fmt.Fprintf(out, " %s  %s\n", e.EventDatetime.Local().Format("Mon 02 Jan 15:04"), e.Title)
	}
}
