package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

const restPath = "/rest/v1/"

// PostgRESTOptions configures the REST table-store driver.
type PostgRESTOptions struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// PostgRESTStore implements Store against a PostgREST compatible endpoint
// (self-hosted PostgREST or a hosted Supabase project).
type PostgRESTStore struct {
	client *resty.Client
}

// postgrestError is the error body PostgREST returns for rejected requests.
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// NewPostgRESTStore builds a REST driver. Reads are retried on transport errors and 5xx.
func NewPostgRESTStore(opts PostgRESTOptions) *PostgRESTStore {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if opts.APIKey != "" {
		client.SetHeader("apikey", opts.APIKey).SetAuthToken(opts.APIKey)
	}
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if r == nil || r.Request == nil {
			return err != nil
		}
		method := r.Request.Method
		if method != http.MethodGet && method != http.MethodHead {
			return false
		}
		return err != nil || r.StatusCode() >= http.StatusInternalServerError
	})
	return &PostgRESTStore{client: client}
}

// Select loads all rows matching q into dest (pointer to slice).
func (s *PostgRESTStore) Select(ctx context.Context, q Query, dest interface{}) error {
	if err := validateQuery(q); err != nil {
		return err
	}
	params := queryParams(q)
	resp, err := s.client.R().SetContext(ctx).SetQueryParamsFromValues(params).Get(restPath + q.Table)
	if err := checkResponse(resp, err, "select "+q.Table); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), dest); err != nil {
		return fmt.Errorf("decode %s rows: %w", q.Table, err)
	}
	return nil
}

// Count issues a HEAD request and reads the exact total from Content-Range.
func (s *PostgRESTStore) Count(ctx context.Context, q Query) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	params := queryParams(Query{Table: q.Table, Filters: q.Filters})
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(params).
		SetHeader("Prefer", "count=exact").
		Head(restPath + q.Table)
	if err := checkResponse(resp, err, "count "+q.Table); err != nil {
		return 0, err
	}
	return parseContentRange(resp.Header().Get("Content-Range"))
}

// Get loads the first row matching q into dest and returns sql.ErrNoRows when none match.
func (s *PostgRESTStore) Get(ctx context.Context, q Query, dest interface{}) error {
	q.Limit = 1
	if err := validateQuery(q); err != nil {
		return err
	}
	resp, err := s.client.R().SetContext(ctx).SetQueryParamsFromValues(queryParams(q)).Get(restPath + q.Table)
	if err := checkResponse(resp, err, "get "+q.Table); err != nil {
		return err
	}
	return decodeFirst(resp.Body(), dest)
}

// Insert posts one row.
func (s *PostgRESTStore) Insert(ctx context.Context, table string, row Row, dest interface{}) error {
	if _, err := validateRow(table, row); err != nil {
		return err
	}
	req := s.client.R().SetContext(ctx).SetBody(row).SetHeader("Prefer", preferReturn(dest))
	resp, err := req.Post(restPath + table)
	if err := checkResponse(resp, err, "insert "+table); err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return decodeFirst(resp.Body(), dest)
}

// Upsert posts one row with merge-duplicates resolution on the conflict columns.
func (s *PostgRESTStore) Upsert(ctx context.Context, table string, conflict []string, row Row, dest interface{}) error {
	if _, err := validateRow(table, row); err != nil {
		return err
	}
	if len(conflict) == 0 {
		return fmt.Errorf("upsert %s: conflict columns required", table)
	}
	if err := checkColumns(table, conflict...); err != nil {
		return err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", strings.Join(conflict, ",")).
		SetHeader("Prefer", "resolution=merge-duplicates,"+preferReturn(dest)).
		SetBody(row).
		Post(restPath + table)
	if err := checkResponse(resp, err, "upsert "+table); err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return decodeFirst(resp.Body(), dest)
}

// InsertIgnore posts rows as one batch, skipping conflicting ones, and returns
// how many were stored.
func (s *PostgRESTStore) InsertIgnore(ctx context.Context, table string, conflict []string, rows []Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := checkColumns(table, conflict...); err != nil {
		return 0, err
	}
	for _, row := range rows {
		if _, err := validateRow(table, row); err != nil {
			return 0, err
		}
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("on_conflict", strings.Join(conflict, ",")).
		SetHeader("Prefer", "resolution=ignore-duplicates,return=representation").
		SetBody(rows).
		Post(restPath + table)
	if err := checkResponse(resp, err, "insert "+table); err != nil {
		return 0, err
	}
	var stored []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &stored); err != nil {
		return 0, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return len(stored), nil
}

// Update patches rows matching filters.
func (s *PostgRESTStore) Update(ctx context.Context, table string, filters []Filter, patch Row, dest interface{}) error {
	if _, err := validateRow(table, patch); err != nil {
		return err
	}
	if len(filters) == 0 {
		return fmt.Errorf("update %s: refusing unfiltered update", table)
	}
	q := Query{Table: table, Filters: filters}
	if err := validateQuery(q); err != nil {
		return err
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(queryParams(q)).
		SetHeader("Prefer", "return=representation").
		SetBody(patch).
		Patch(restPath + table)
	if err := checkResponse(resp, err, "update "+table); err != nil {
		return err
	}
	if dest == nil {
		var rows []json.RawMessage
		if err := json.Unmarshal(resp.Body(), &rows); err != nil {
			return fmt.Errorf("decode %s rows: %w", table, err)
		}
		if len(rows) == 0 {
			return sql.ErrNoRows
		}
		return nil
	}
	return decodeFirst(resp.Body(), dest)
}

// Ping checks that the REST endpoint answers.
func (s *PostgRESTStore) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Head(restPath)
	return checkResponse(resp, err, "ping")
}

func preferReturn(dest interface{}) string {
	if dest == nil {
		return "return=minimal"
	}
	return "return=representation"
}

func queryParams(q Query) url.Values {
	params := url.Values{}
	for _, f := range q.Filters {
		params.Add(f.Column, filterExpr(f))
	}
	if len(q.Sort) > 0 {
		parts := make([]string, 0, len(q.Sort))
		for _, s := range q.Sort {
			if s.Desc {
				parts = append(parts, s.Column+".desc.nullslast")
			} else {
				parts = append(parts, s.Column+".asc")
			}
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	return params
}

func filterExpr(f Filter) string {
	switch f.Op {
	case OpIs:
		if f.Value == nil {
			return "is.null"
		}
		return "not.is.null"
	case OpIn:
		values := toStrings(f.Value)
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = quoteListValue(v)
		}
		return "in.(" + strings.Join(quoted, ",") + ")"
	default:
		return string(f.Op) + "." + formatValue(f.Value)
	}
}

func quoteListValue(v string) string {
	if strings.ContainsAny(v, ",()\" ") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}

func toStrings(v interface{}) []string {
	switch typed := v.(type) {
	case []string:
		return typed
	case nil:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return []string{formatValue(v)}
	}
	out := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = formatValue(rv.Index(i).Interface())
	}
	return out
}

func formatValue(v interface{}) string {
	switch typed := v.(type) {
	case nil:
		return "null"
	case string:
		return typed
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return typed.String()
	case driver.Valuer:
		inner, err := typed.Value()
		if err != nil {
			return ""
		}
		return formatValue(inner)
	default:
		return fmt.Sprint(v)
	}
}

func decodeFirst(body []byte, dest interface{}) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode rows: %w", err)
	}
	if len(rows) == 0 {
		return sql.ErrNoRows
	}
	return json.Unmarshal(rows[0], dest)
}

func parseContentRange(header string) (int, error) {
	idx := strings.LastIndex(header, "/")
	if idx < 0 || idx == len(header)-1 {
		return 0, fmt.Errorf("invalid content range %q", header)
	}
	total := header[idx+1:]
	if total == "*" {
		return 0, fmt.Errorf("content range without exact count %q", header)
	}
	return strconv.Atoi(total)
}

// checkResponse classifies transport failures and non-2xx answers.
func checkResponse(resp *resty.Response, err error, op string) error {
	if err != nil {
		if ctxErr := context.Cause(requestContext(resp)); ctxErr != nil {
			return ctxErr
		}
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, op+": remote store unreachable")
	}
	if !resp.IsError() {
		return nil
	}
	var body postgrestError
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	cause := fmt.Errorf("%s: %d %s", op, resp.StatusCode(), msg)
	switch status := resp.StatusCode(); {
	case status == http.StatusConflict:
		return appErrors.Wrap(cause, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, op+": duplicate row")
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return appErrors.Wrap(cause, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, op+": "+msg)
	case status == http.StatusUnauthorized:
		return appErrors.Wrap(cause, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, appErrors.ErrSessionExpired.Message)
	case status == http.StatusForbidden:
		return appErrors.Wrap(cause, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, op+": rejected by row policy")
	case status >= http.StatusInternalServerError:
		return appErrors.Wrap(cause, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, op+": remote store error")
	default:
		return cause
	}
}

func requestContext(resp *resty.Response) context.Context {
	if resp == nil || resp.Request == nil || resp.Request.Context() == nil {
		return context.Background()
	}
	return resp.Request.Context()
}
