package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/metrics"
	"github.com/ardanlabs/ledger/foundation/web"
)

// Metrics counts every request by the status code written for it.
func Metrics(m *metrics.Metrics) web.Middleware {
	mw := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			statusCode := http.StatusInternalServerError
			if v, verr := web.GetValues(ctx); verr == nil && v.StatusCode != 0 {
				statusCode = v.StatusCode
			}
			m.Request(statusCode)

			return err
		}

		return h
	}

	return mw
}
