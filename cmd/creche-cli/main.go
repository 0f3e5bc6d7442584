// Command creche-cli is a terminal client for the crèche API. It lands on the
// admin or parent screens according to the signed-in role.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/noah-isme/creche-api/internal/models"
	"github.com/noah-isme/creche-api/pkg/client"
	"github.com/noah-isme/creche-api/pkg/navigation"
)

const usage = `usage: creche-cli <command> [flags]

commands:
  login -email E -password P   sign in and remember the session
  logout                       forget the session
  route                        show where the current session lands
  dashboard                    show the landing screen for your role
  list <screen>                children, attendance, events, announcements,
                               payments, media, consents, notifications
  attendance -child ID [-date YYYY-MM-DD] [-absent] [-reason R]   (admin)
  payment-status -id ID -status pending|paid|overdue              (admin)
  consent -child ID -type photos|videos|both|none [-usage a,b]    (parent)

environment:
  CRECHE_API_URL   API base including prefix (default http://localhost:8080/api/v1)
  CRECHE_DATA_DIR  where session.json is kept (default: user config dir)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return nil
	}
	c, err := client.New(client.Config{
		BaseURL:    envOr("CRECHE_API_URL", "http://localhost:8080/api/v1"),
		DataDir:    dataDir(),
		Timeout:    15 * time.Second,
		RetryCount: 2,
	})
	if err != nil {
		return err
	}
	app := &app{client: c, out: out}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return app.login(ctx, rest)
	case "logout":
		return c.Logout(ctx)
	case "route":
		fmt.Fprintln(out, c.Destination())
		return nil
	case "dashboard":
		return app.dashboard(ctx)
	case "list":
		if len(rest) == 0 {
			return errors.New("list needs a screen name")
		}
		return app.list(ctx, rest[0])
	case "attendance":
		return app.markAttendance(ctx, rest)
	case "payment-status":
		return app.paymentStatus(ctx, rest)
	case "consent":
		return app.consent(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type app struct {
	client *client.Client
	out    io.Writer
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(a.out, "signed in as %s (%s)\n", s.Email, s.Role)
	fmt.Fprintln(a.out, "landing:", s.Destination())
	return nil
}

// role returns the navigation role of the signed-in user or an error pointing at login.
func (a *app) role() (navigation.Role, error) {
	switch a.client.Destination() {
	case navigation.DestinationAdminDashboard:
		return navigation.RoleAdmin, nil
	case navigation.DestinationParentDashboard:
		return navigation.RoleParent, nil
	default:
		return navigation.RoleUnknown, errors.New("not signed in; run: creche-cli login -email ... -password ...")
	}
}

func (a *app) dashboard(ctx context.Context) error {
	role, err := a.role()
	if err != nil {
		return err
	}
	if role == navigation.RoleAdmin {
		d, err := a.client.AdminDashboard(ctx)
		if err != nil {
			return err
		}
		renderAdminDashboard(a.out, d)
		return nil
	}
	d, err := a.client.ParentDashboard(ctx)
	if err != nil {
		return err
	}
	renderParentDashboard(a.out, d)
	return nil
}

func (a *app) list(ctx context.Context, screen string) error {
	role, err := a.role()
	if err != nil {
		return err
	}
	prefix := "/parent"
	if role == navigation.RoleAdmin {
		prefix = "/admin"
	}
	if screen == "notifications" {
		if role != navigation.RoleParent {
			return errors.New("notifications are a parent screen")
		}
		screen = "notifications/events"
	}

	path := prefix + "/" + screen
	switch screen {
	case "children":
		return show(ctx, a.out, client.NewListLoader[models.Child](a.client, path, nil), childTable)
	case "attendance":
		return show(ctx, a.out, client.NewListLoader[models.Attendance](a.client, path, nil), attendanceTable)
	case "events":
		return show(ctx, a.out, client.NewListLoader[models.Event](a.client, path, nil), eventTable)
	case "announcements":
		return show(ctx, a.out, client.NewListLoader[models.Announcement](a.client, path, nil), announcementTable)
	case "payments":
		return show(ctx, a.out, client.NewListLoader[models.Payment](a.client, path, nil), paymentTable)
	case "media":
		return show(ctx, a.out, client.NewListLoader[models.MediaItem](a.client, path, nil), mediaTable)
	case "consents":
		return show(ctx, a.out, client.NewListLoader[models.MediaConsent](a.client, path, nil), consentTable)
	case "notifications/events":
		return show(ctx, a.out, client.NewListLoader[models.EventNotification](a.client, path, nil), notificationTable)
	default:
		return fmt.Errorf("unknown screen %q", screen)
	}
}

func (a *app) markAttendance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("attendance", flag.ContinueOnError)
	childID := fs.String("child", "", "child id")
	day := fs.String("date", time.Now().Format(models.DateLayout), "YYYY-MM-DD")
	absent := fs.Bool("absent", false, "mark absent instead of present")
	reason := fs.String("reason", "", "absence reason sent to the parent")
	if err := fs.Parse(args); err != nil {
		return err
	}
	date, err := models.ParseDate(*day)
	if err != nil {
		return err
	}
	present := !*absent
	row, err := a.client.MarkAttendance(ctx, models.MarkAttendanceRequest{ChildID: *childID, Date: date, IsPresent: &present, Reason: *reason})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s on %s: %s\n", row.ChildID, row.Date, presence(row.IsPresent))
	return nil
}

func (a *app) paymentStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("payment-status", flag.ContinueOnError)
	id := fs.String("id", "", "payment id")
	status := fs.String("status", "", "pending, paid or overdue")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.client.SetPaymentStatus(ctx, *id, models.PaymentStatus(*status))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "payment %s is now %s\n", p.ID, paymentStatus(p.Status))
	return nil
}

func (a *app) consent(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("consent", flag.ContinueOnError)
	childID := fs.String("child", "", "child id")
	kind := fs.String("type", "none", "photos, videos, both or none")
	usages := fs.String("usage", "", "comma separated: internal,website,social_media,promotional")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req := models.ConsentRequest{
		ChildID:        *childID,
		ConsentType:    models.ConsentType(*kind),
		ConsentGranted: *kind != string(models.ConsentNone),
	}
	for _, u := range strings.Split(*usages, ",") {
		if u = strings.TrimSpace(u); u != "" {
			req.UsagePermissions = append(req.UsagePermissions, models.Usage(u))
		}
	}
	row, err := a.client.UpsertConsent(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "consent for %s: %s, granted=%t, usage=%s\n", row.ChildID, row.ConsentType, row.ConsentGranted, strings.Join(row.UsagePermissions, ","))
	return nil
}

// describe turns client failures into the message a user can act on.
func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrSessionExpired):
		return "your session has expired; please log in again"
	case errors.Is(err, client.ErrTransport):
		return "could not reach the server: " + err.Error()
	default:
		return err.Error()
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func dataDir() string {
	if v := os.Getenv("CRECHE_DATA_DIR"); v != "" {
		return v
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "creche")
	}
	return ".creche"
}
