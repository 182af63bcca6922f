package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/regnum-scraper/internal/testutil"
)

func setEnv(t *testing.T, baseURL string) (csvPath, xlsxPath string) {
	t.Helper()
	dir := t.TempDir()
	csvPath = filepath.Join(dir, "register_numbers.csv")
	xlsxPath = filepath.Join(dir, "register_numbers.xlsx")

	t.Setenv("REGNUM_BASE_URL", baseURL)
	t.Setenv("REGNUM_CSV_PATH", csvPath)
	t.Setenv("REGNUM_XLSX_PATH", xlsxPath)
	t.Setenv("REGNUM_REQUEST_DELAY", "1ms")
	t.Setenv("LOG_FORMAT", "json")
	return csvPath, xlsxPath
}

func TestRun_Success(t *testing.T) {
	mock := testutil.NewMockAPI(2, 3)
	defer mock.Close()
	csvPath, xlsxPath := setEnv(t, mock.URL())

	var out bytes.Buffer
	if code := run(context.Background(), &out); code != 0 {
		t.Fatalf("run() = %d, want 0; log:\n%s", code, out.String())
	}

	if _, err := os.Stat(csvPath); err != nil {
		t.Errorf("CSV not written: %v", err)
	}
	if _, err := os.Stat(xlsxPath); err != nil {
		t.Errorf("XLSX not written: %v", err)
	}

	logs := out.String()
	for _, want := range []string{"Scraping completed in", "Total records scraped: 6", "Successfully fetched 2 out of 2 pages"} {
		if !strings.Contains(logs, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestRun_AllPagesFailedExitsZero(t *testing.T) {
	mock := testutil.NewMockAPI(2, 3)
	defer mock.Close()
	mock.SetPage(1, testutil.PageBehavior{StatusCode: http.StatusForbidden})
	csvPath, _ := setEnv(t, mock.URL())

	var out bytes.Buffer
	if code := run(context.Background(), &out); code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	if _, err := os.Stat(csvPath); !os.IsNotExist(err) {
		t.Error("no file should be written without records")
	}
	if !strings.Contains(out.String(), "Total records scraped: 0") {
		t.Error("expected zero record summary")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1/api/register_numbers")
	t.Setenv("REGNUM_MAX_CONCURRENCY", "many")

	var out bytes.Buffer
	if code := run(context.Background(), &out); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestRun_MissingOutputDir(t *testing.T) {
	setEnv(t, "http://127.0.0.1:1/api/register_numbers")
	t.Setenv("REGNUM_CSV_PATH", filepath.Join(t.TempDir(), "missing", "out.csv"))

	var out bytes.Buffer
	if code := run(context.Background(), &out); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
	if !strings.Contains(out.String(), "Invalid configuration") {
		t.Error("expected preflight failure in log")
	}
}

func TestRun_MissingFieldExitsOne(t *testing.T) {
	mock := testutil.NewMockAPI(1, 1)
	defer mock.Close()
	mock.SetPage(1, testutil.PageBehavior{RawBody: `{"success":true,"data":{"current_page":1,"last_page":1,"data":[{"id":1}]}}`})
	setEnv(t, mock.URL())

	var out bytes.Buffer
	if code := run(context.Background(), &out); code != 1 {
		t.Errorf("run() = %d, want 1", code)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("REGNUM_TEST_VALUE", "set")
	if got := getEnv("REGNUM_TEST_VALUE", "default"); got != "set" {
		t.Errorf("getEnv() = %q, want set", got)
	}
	if got := getEnv("REGNUM_TEST_UNSET", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want default", got)
	}
}

func TestRun_LogSettingsFromConfigFile(t *testing.T) {
	mock := testutil.NewMockAPI(2, 1)
	defer mock.Close()
	mock.SetPage(2, testutil.PageBehavior{StatusCode: http.StatusInternalServerError})
	setEnv(t, mock.URL())
	t.Setenv("LOG_FORMAT", "")

	cfgPath := filepath.Join(t.TempDir(), "regnum.yaml")
	if err := os.WriteFile(cfgPath, []byte("log:\n  level: warn\n  format: json\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("REGNUM_CONFIG", cfgPath)

	var out bytes.Buffer
	if code := run(context.Background(), &out); code != 0 {
		t.Fatalf("run() = %d, want 0; log:\n%s", code, out.String())
	}

	logs := out.String()
	if strings.Contains(logs, "Starting scraper") {
		t.Error("info lines should be suppressed by log.level=warn")
	}
	if !strings.Contains(logs, `"level":"warn"`) {
		t.Errorf("expected JSON warn line for the failed page, got:\n%s", logs)
	}
}
