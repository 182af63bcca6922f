package pagination

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/regnum-scraper/pkg/client"
	"github.com/Sternrassler/regnum-scraper/pkg/records"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regnum_pages_total",
		Help: "Pages processed by the batch fetcher by result",
	}, []string{"result"})

	pagesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "regnum_pages_in_flight",
		Help: "Page fetches currently in flight",
	})
)

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the number of workers, and so the maximum number of
	// page fetches in flight at any instant.
	MaxConcurrency int
	// Timeout per page fetch
	Timeout time.Duration
	// BufferSize bounds the page queue and result channels independently of
	// the page count the API reports.
	BufferSize int
}

// DefaultConfig returns the default configuration: 10 workers, 15s per page.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
		BufferSize:     400,
	}
}

// PageFetcher fetches a single page. client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (*client.Page, error)
}

// Throttle is waited on before every fetch. ratelimit.Throttle implements it.
type Throttle interface {
	Wait(ctx context.Context) error
}

// PageResult represents the result of fetching a single page
type PageResult struct {
	PageNumber int
	Page       *client.Page
	Error      error
}

// Result is the outcome of a batch fetch.
type Result struct {
	// TotalPages is last_page from the discovery request, 0 if discovery failed.
	TotalPages int

	// Pages holds the successful pages in page-number order.
	Pages []*client.Page

	// Failed lists pages that errored or reported success=false.
	Failed []int
}

// Items returns every item of every successful page, in page order.
func (r *Result) Items() []records.Item {
	var items []records.Item
	for _, p := range r.Pages {
		items = append(items, p.Data.Items...)
	}
	return items
}

// ItemCount is the number of items across successful pages.
func (r *Result) ItemCount() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Data.Items)
	}
	return n
}

// BatchFetcher handles parallel fetching of multiple pages
type BatchFetcher struct {
	fetcher  PageFetcher
	throttle Throttle
	config   Config
}

// NewBatchFetcher creates a new batch fetcher. throttle may be nil.
func NewBatchFetcher(fetcher PageFetcher, throttle Throttle, config Config) *BatchFetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 10
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 400
	}

	return &BatchFetcher{
		fetcher:  fetcher,
		throttle: throttle,
		config:   config,
	}
}

// TotalPages fetches page 1 and returns its last_page. It returns 0 when the
// page could not be fetched or reported success=false.
func (bf *BatchFetcher) TotalPages(ctx context.Context) int {
	pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()

	first, err := bf.fetcher.FetchPage(pageCtx, 1)
	if err != nil || first == nil || !first.Success {
		return 0
	}
	if first.Data.LastPage < 0 {
		return 0
	}
	return first.Data.LastPage
}

// FetchAllPages discovers the page count and fetches pages 1..total with the
// worker pool. Failed pages are dropped; the error is non-nil only when ctx
// ends before every page was attempted.
func (bf *BatchFetcher) FetchAllPages(ctx context.Context) (*Result, error) {
	start := time.Now()

	totalPages := bf.TotalPages(ctx)
	if totalPages == 0 {
		if err := ctx.Err(); err != nil {
			return &Result{}, fmt.Errorf("discover total pages: %w", err)
		}
		log.Warn().Msg("Could not determine total pages")
		return &Result{}, nil
	}

	log.Info().
		Int("total_pages", totalPages).
		Int("workers", bf.workerCount(totalPages)).
		Msg("Starting parallel page fetch")

	bufferSize := min(bf.config.BufferSize, totalPages)
	pageQueue := make(chan int, bufferSize)
	pageResults := make(chan PageResult, bufferSize)

	// Page 1 is fetched again: discovery only reads its metadata.
	go func() {
		defer close(pageQueue)
		for page := 1; page <= totalPages; page++ {
			select {
			case pageQueue <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < bf.workerCount(totalPages); i++ {
		wg.Add(1)
		go bf.worker(ctx, pageQueue, pageResults, &wg, i)
	}

	go func() {
		wg.Wait()
		close(pageResults)
	}()

	byPage := make(map[int]*client.Page, bufferSize)
	var failed []int
	attempted := 0
	for result := range pageResults {
		attempted++
		switch {
		case result.Error != nil:
			failed = append(failed, result.PageNumber)
			pagesTotal.WithLabelValues("error").Inc()
		case result.Page == nil || !result.Page.Success:
			log.Warn().
				Int("page", result.PageNumber).
				Msg("Page reported success=false")
			failed = append(failed, result.PageNumber)
			pagesTotal.WithLabelValues("unsuccessful").Inc()
		default:
			byPage[result.PageNumber] = result.Page
			pagesTotal.WithLabelValues("ok").Inc()
		}

		if attempted%50 == 0 {
			log.Info().
				Int("attempted", attempted).
				Int("total", totalPages).
				Float64("progress_pct", float64(attempted)/float64(totalPages)*100).
				Msg("Fetch progress")
		}
	}

	res := &Result{TotalPages: totalPages, Failed: failed}
	numbers := make([]int, 0, len(byPage))
	for n := range byPage {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		res.Pages = append(res.Pages, byPage[n])
	}
	sort.Ints(res.Failed)

	log.Info().
		Int("fetched", len(res.Pages)).
		Int("total", totalPages).
		Int("failed", len(res.Failed)).
		Dur("duration", time.Since(start)).
		Msgf("Successfully fetched %d out of %d pages", len(res.Pages), totalPages)

	if err := ctx.Err(); err != nil && attempted < totalPages {
		return res, fmt.Errorf("fetch cancelled (partial data: %d/%d pages): %w", len(res.Pages), totalPages, err)
	}

	return res, nil
}

func (bf *BatchFetcher) workerCount(totalPages int) int {
	if totalPages < bf.config.MaxConcurrency {
		return totalPages
	}
	return bf.config.MaxConcurrency
}

// worker processes pages from the queue
func (bf *BatchFetcher) worker(ctx context.Context, pageQueue <-chan int, results chan<- PageResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	pagesProcessed := 0

	for pageNum := range pageQueue {
		select {
		case <-ctx.Done():
			log.Debug().
				Int("worker_id", workerID).
				Int("pages_processed", pagesProcessed).
				Msg("Worker stopping (context cancelled)")
			return
		default:
		}

		if bf.throttle != nil {
			if err := bf.throttle.Wait(ctx); err != nil {
				results <- PageResult{PageNumber: pageNum, Error: err}
				return
			}
		}

		pagesInFlight.Inc()
		pageCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		page, err := bf.fetcher.FetchPage(pageCtx, pageNum)
		cancel()
		pagesInFlight.Dec()

		results <- PageResult{PageNumber: pageNum, Page: page, Error: err}
		pagesProcessed++
	}

	if pagesProcessed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("pages_processed", pagesProcessed).
			Msg("Worker completed")
	}
}
