package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/creche-api/pkg/errors"
)

// InitSentry configures the Sentry client. An empty DSN disables reporting.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports err unless it is nil.
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// GinMiddleware reports errors attached to 5xx responses and recovers panics into Sentry.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().Recover(r)
				panic(r)
			}
		}()
		c.Next()

		if c.Writer.Status() < 500 {
			return
		}
		for _, ginErr := range c.Errors {
			if appErr := appErrors.FromError(ginErr.Err); appErr.Status >= 500 {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetTag("path", c.FullPath())
				hub.Scope().SetTag("method", c.Request.Method)
				hub.CaptureException(ginErr.Err)
			}
		}
	}
}
