// Command store_parity signs in to two deployments of the API, typically one on
// the postgres table store and one on the REST table store over the same data,
// and reports list screens whose rows differ.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"reflect"
	"sort"
	"time"

	"github.com/noah-isme/creche-api/pkg/client"
	"github.com/noah-isme/creche-api/pkg/navigation"
)

type target struct {
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

var adminTargets = []target{
	{Path: "/admin/children", Critical: true},
	{Path: "/admin/attendance", Critical: true},
	{Path: "/admin/payments", Critical: true},
	{Path: "/admin/consents", Critical: true},
	{Path: "/admin/users"},
	{Path: "/admin/staff"},
	{Path: "/admin/events"},
	{Path: "/admin/announcements"},
	{Path: "/admin/media"},
}

var parentTargets = []target{
	{Path: "/parent/children", Critical: true},
	{Path: "/parent/attendance", Critical: true},
	{Path: "/parent/payments", Critical: true},
	{Path: "/parent/consents", Critical: true},
	{Path: "/parent/events"},
	{Path: "/parent/announcements"},
	{Path: "/parent/media"},
	{Path: "/parent/notifications/events"},
	{Path: "/parent/notifications/absences"},
}

type result struct {
	Target    target
	Left      int
	Right     int
	Match     bool
	Err       error
	LeftTook  time.Duration
	RightTook time.Duration
}

type row = map[string]interface{}

// volatile fields legitimately differ between deployments.
var volatile = map[string]bool{"url": true, "url_expires_at": true}

func main() {
	var (
		leftBase    string
		rightBase   string
		email       string
		password    string
		targetsPath string
		timeout     time.Duration
	)
	flag.StringVar(&leftBase, "left", "http://localhost:8080/api/v1", "first API base URL")
	flag.StringVar(&rightBase, "right", "http://localhost:8081/api/v1", "second API base URL")
	flag.StringVar(&email, "email", os.Getenv("PARITY_EMAIL"), "account used on both sides")
	flag.StringVar(&password, "password", os.Getenv("PARITY_PASSWORD"), "account password")
	flag.StringVar(&targetsPath, "targets", "", "optional JSON file with a targets array; defaults to the role's screens")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "per request timeout")
	flag.Parse()

	ctx := context.Background()
	left, err := signIn(ctx, leftBase, email, password, timeout)
	if err != nil {
		log.Fatalf("left: %v", err)
	}
	right, err := signIn(ctx, rightBase, email, password, timeout)
	if err != nil {
		log.Fatalf("right: %v", err)
	}

	targets := parentTargets
	if s, _ := left.Sessions().Current(); s.Destination() == navigation.DestinationAdminDashboard {
		targets = adminTargets
	}
	if targetsPath != "" {
		if targets, err = loadTargets(targetsPath); err != nil {
			log.Fatalf("load targets: %v", err)
		}
	}

	results := make([]result, 0, len(targets))
	breaking, optional := 0, 0
	for _, t := range targets {
		res := compare(ctx, left, right, t)
		if res.Err != nil || !res.Match {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}
	report(os.Stdout, results)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func signIn(ctx context.Context, base, email, password string, timeout time.Duration) (*client.Client, error) {
	c, err := client.New(client.Config{BaseURL: base, Timeout: timeout, RetryCount: 1})
	if err != nil {
		return nil, err
	}
	if _, err := c.Login(ctx, email, password); err != nil {
		return nil, err
	}
	return c, nil
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg struct {
		Targets []target `json:"targets"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return cfg.Targets, nil
}

func compare(ctx context.Context, left, right *client.Client, t target) result {
	res := result{Target: t}

	start := time.Now()
	l, _, err := client.List[row](ctx, left, t.Path, nil)
	res.LeftTook = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("left: %w", err)
		return res
	}

	start = time.Now()
	r, _, err := client.List[row](ctx, right, t.Path, nil)
	res.RightTook = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("right: %w", err)
		return res
	}

	res.Left, res.Right = len(l), len(r)
	res.Match = rowsEqual(l, r)
	return res
}

// rowsEqual compares rows by id, ignoring order and volatile fields.
func rowsEqual(a, b []row) bool {
	if len(a) != len(b) {
		return false
	}
	return reflect.DeepEqual(canonical(a), canonical(b))
}

func canonical(rows []row) []row {
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		c := make(row, len(r))
		for k, v := range r {
			if !volatile[k] {
				c[k] = v
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]["id"]) < fmt.Sprint(out[j]["id"])
	})
	return out
}

func report(w io.Writer, results []result) {
	fmt.Fprintln(w, "Store Parity Report")
	fmt.Fprintln(w, "===================")
	for _, res := range results {
		status := "OK"
		switch {
		case res.Err != nil:
			status = "ERROR"
		case !res.Match:
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s\n", status, res.Target.Path)
		if res.Err != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Err)
			continue
		}
		fmt.Fprintf(w, "  rows %d (%s) vs %d (%s) | critical: %t\n", res.Left, res.LeftTook, res.Right, res.RightTook, res.Target.Critical)
	}
}
