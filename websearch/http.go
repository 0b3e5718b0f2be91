package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/retry"
)

// getJSON issues a rate limited GET and decodes the JSON body into out.
// Throttling and server errors are retried; other statuses are not.
func getJSON(ctx context.Context, o *options, provider string, req *http.Request, out any) error {
	err := retry.WithBackoff(ctx, func() error {
		if err := o.limiter.Wait(ctx); err != nil {
			return retry.Permanent(err)
		}

		resp, err := o.client.Do(req.Clone(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("%s http %d", provider, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return retry.Permanent(fmt.Errorf("%s http %d: %s", provider, resp.StatusCode, body))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Permanent(fmt.Errorf("%s: decoding response: %w", provider, err))
		}
		return nil
	}, o.retries+1, o.retryDelay)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrSearch, err)
	}
	return nil
}
