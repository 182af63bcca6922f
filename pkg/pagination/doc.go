// Package pagination fetches every page of the register-number listing with a
// bounded worker pool.
//
// The listing reports its page count in data.last_page. The batch fetcher:
//   - Fetches page 1 to read last_page (0 pages if it fails or says success=false)
//   - Queues pages 1..last_page
//   - Runs MaxConcurrency workers (default 10); each waits on the throttle,
//     then issues one request with a per-page timeout
//   - Drops failed pages and keeps the rest in page order
//
// Example usage:
//
//	throttle, _ := ratelimit.NewThrottle(ratelimit.DefaultConfig(), logger)
//	fetcher := pagination.NewBatchFetcher(apiClient, throttle, pagination.DefaultConfig())
//	result, err := fetcher.FetchAllPages(ctx)
package pagination
