package main

import (
	"context"
	"errors"
	"net"

	"breachwatch/internal/feed"
	"breachwatch/internal/syncer"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}
	lines = append(lines, errorHints(err)...)
	return uniqueLines(lines)
}

func errorHints(err error) []string {
	var apiErr *feed.APIError
	if errors.As(err, &apiErr) {
		var hints []string
		switch {
		case apiErr.Status == 401:
			hints = append(hints, "hint: set BREACHWATCH_API_KEY (or feed.api_key) to a valid feed API key.")
		case apiErr.Status == 403:
			hints = append(hints, "hint: the feed refused the request; check feed.user_agent is set and the key is active.")
		case apiErr.RateLimited():
			hints = append(hints, "hint: the feed is rate limiting this key; raise sync.min_interval or BREACHWATCH_MIN_INTERVAL.")
		case apiErr.Status == 404:
			hints = append(hints, "hint: verify BREACHWATCH_FEED_URL points to the breach feed API.")
		case apiErr.Status >= 500:
			hints = append(hints, "hint: the feed returned a server error; affected work is retried on the next run.")
		}
		return hints
	}

	if errors.Is(err, context.Canceled) {
		return []string{"hint: run interrupted; committed links are kept and the next run picks up the rest."}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return []string{"hint: feed request timed out; increase feed.timeout for slower networks."}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return []string{
			"hint: the feed could not be reached; check network access and BREACHWATCH_FEED_URL.",
		}
	}

	return nil
}

// skipHints collects guidance for identities a reconciliation pass skipped.
func skipHints(res syncer.ReconcileResult) []string {
	var lines []string
	for _, o := range res.Outcomes {
		if o.State != syncer.StateSkipped || o.Err == nil {
			continue
		}
		lines = append(lines, errorHints(o.Err)...)
	}
	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
