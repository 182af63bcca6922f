// Package testutil provides a mock register-number listing API for tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// ListingPath is the path the mock serves.
const ListingPath = "/api/register_numbers"

// PageBehavior overrides the default response for one page.
type PageBehavior struct {
	// StatusCode other than 200 is written with an error body.
	StatusCode int

	// Success is the success flag of a 200 response. Nil means true.
	Success *bool

	// Items is the number of items on the page. Nil means ItemsPerPage.
	Items *int

	// RawBody replaces the whole body of a 200 response.
	RawBody string

	// Delay is applied before answering.
	Delay time.Duration
}

// MockAPI is a configurable listing API backed by httptest and gin.
type MockAPI struct {
	server *httptest.Server

	mu           sync.RWMutex
	lastPage     int
	itemsPerPage int
	delay        time.Duration
	pages        map[int]PageBehavior
	requests     map[int]int
	lastHeader   http.Header
	lastQuery    map[string]string

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

// NewMockAPI starts a mock reporting lastPage pages of itemsPerPage items each.
func NewMockAPI(lastPage, itemsPerPage int) *MockAPI {
	gin.SetMode(gin.TestMode)

	m := &MockAPI{
		lastPage:     lastPage,
		itemsPerPage: itemsPerPage,
		pages:        make(map[int]PageBehavior),
		requests:     make(map[int]int),
	}

	router := gin.New()
	router.GET(ListingPath, m.handle)
	m.server = httptest.NewServer(router)

	return m
}

// URL returns the full listing endpoint URL.
func (m *MockAPI) URL() string {
	return m.server.URL + ListingPath
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// SetPage configures the behaviour of one page.
func (m *MockAPI) SetPage(page int, b PageBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page] = b
}

// SetDelay applies a delay to every response, which makes concurrency observable.
func (m *MockAPI) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// RequestCount returns the number of requests for a page.
func (m *MockAPI) RequestCount(page int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[page]
}

// TotalRequests returns the number of requests across all pages.
func (m *MockAPI) TotalRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, n := range m.requests {
		total += n
	}
	return total
}

// MaxInFlight returns the highest number of concurrently served requests.
func (m *MockAPI) MaxInFlight() int {
	return int(m.maxInFlight.Load())
}

// LastHeader returns the headers of the most recent request.
func (m *MockAPI) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// LastQuery returns the query parameters of the most recent request.
func (m *MockAPI) LastQuery() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

func (m *MockAPI) handle(c *gin.Context) {
	cur := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		old := m.maxInFlight.Load()
		if cur <= old || m.maxInFlight.CompareAndSwap(old, cur) {
			break
		}
	}

	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}

	m.mu.Lock()
	m.requests[page]++
	m.lastHeader = c.Request.Header.Clone()
	m.lastQuery = map[string]string{
		"page":     c.Query("page"),
		"paginate": c.Query("paginate"),
		"number":   c.Query("number"),
	}
	behavior := m.pages[page]
	delay := m.delay
	lastPage := m.lastPage
	perPage := m.itemsPerPage
	m.mu.Unlock()

	if behavior.Delay > 0 {
		delay = behavior.Delay
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	if behavior.StatusCode != 0 && behavior.StatusCode != http.StatusOK {
		c.JSON(behavior.StatusCode, gin.H{"message": "Server Error"})
		return
	}
	if behavior.RawBody != "" {
		c.Data(http.StatusOK, "application/json", []byte(behavior.RawBody))
		return
	}

	success := true
	if behavior.Success != nil {
		success = *behavior.Success
	}
	n := perPage
	if behavior.Items != nil {
		n = *behavior.Items
	}

	items := make([]gin.H, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, Item((page-1)*perPage+i+1))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": success,
		"data": gin.H{
			"current_page": page,
			"data":         items,
			"last_page":    lastPage,
			"per_page":     strconv.Itoa(perPage),
			"total":        lastPage * perPage,
		},
	})
}

// Item builds a listing item shaped like the real API's.
func Item(id int) gin.H {
	var description any
	if id%2 == 0 {
		description = fmt.Sprintf("plate %d", id)
	}
	return gin.H{
		"id":               id,
		"region_number_id": 10,
		"first_letter":     "AA",
		"second_letter":    "BB",
		"number":           fmt.Sprintf("%03d", id%1000),
		"price":            100 + id,
		"currency":         "AZN",
		"city_id":          4,
		"views":            id * 3,
		"author_phone":     nil,
		"author_name":      "Seller",
		"description":      description,
		"user_id":          nil,
		"status":           1,
		"deleted_at":       nil,
		"created_at":       "2025-09-01T10:00:00.000000Z",
		"updated_at":       "2025-09-02T10:00:00.000000Z",
		"region":           gin.H{"id": 10, "region_number": "10", "name": "Baku"},
		"city":             gin.H{"id": 4, "name": "Baku city"},
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to n.
func Int(n int) *int { return &n }
