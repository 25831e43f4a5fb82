// Replay sends a labeled CSV of credit applications to a running
// motor-credito and compares its verdicts with the expected ones.
//
// Usage:
//
//	go run ./cmd/replay -csv applications.csv -url http://localhost:8080
//
// The CSV header names the columns; recognized ones are documentNumber,
// documentType, payer, declaredGrossIncome, tenureYears, requestedAmount,
// requestedTermMonths and expected (APPROVED, REJECTED or a rejection code).
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

// Case is one labeled application.
type Case struct {
	Application domain.ApplicationRequest
	Expected    string
}

// Report aggregates replay results.
type Report struct {
	mu sync.Mutex

	Processed int
	Errors    int
	Agreed    int
	Disagreed int

	// Confusion counts keyed by expected then actual status
	Confusion map[string]map[string]int
	Codes     map[domain.RejectionCode]int

	Latency time.Duration
}

func newReport() *Report {
	return &Report{
		Confusion: make(map[string]map[string]int),
		Codes:     make(map[domain.RejectionCode]int),
	}
}

func (r *Report) record(c Case, resp *domain.EvaluationResponse, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Processed++
	r.Latency += elapsed
	if err != nil {
		r.Errors++
		return
	}

	if resp.RejectionCode != "" {
		r.Codes[resp.RejectionCode]++
	}
	if c.Expected == "" {
		return
	}

	expected := c.Expected
	if expected != domain.StatusApproved && expected != domain.StatusRejected {
		// A rejection code label must match the code, not just the status.
		if string(resp.RejectionCode) == expected {
			r.Agreed++
		} else {
			r.Disagreed++
		}
		expected = domain.StatusRejected
	} else if expected == resp.Status {
		r.Agreed++
	} else {
		r.Disagreed++
	}

	if r.Confusion[expected] == nil {
		r.Confusion[expected] = make(map[string]int)
	}
	r.Confusion[expected][resp.Status]++
}

func main() {
	csvPath := flag.String("csv", "", "Path to the labeled applications CSV")
	baseURL := flag.String("url", "http://localhost:8080", "motor-credito base URL")
	tenantID := flag.String("tenant", "replay", "Tenant ID for requests")
	limit := flag.Int("limit", 0, "Maximum applications to send (0 = all)")
	workers := flag.Int("workers", 10, "Concurrent requests")
	verbose := flag.Bool("verbose", false, "Print each result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: replay -csv applications.csv [-url http://localhost:8080]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: motor-credito not reachable at %s: %v\n", *baseURL, err)
		os.Exit(1)
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	cases, err := readCases(f, *limit)
	f.Close()
	if err != nil {
		fmt.Printf("ERROR: failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d applications from %s\n", len(cases), *csvPath)

	start := time.Now()
	report := replay(context.Background(), cases, *baseURL, *tenantID, *workers, *verbose)
	printReport(report, time.Since(start))
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readCases parses labeled applications. Rows that fail to parse are skipped.
func readCases(r io.Reader, limit int) ([]Case, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["documentnumber"]; !ok {
		return nil, fmt.Errorf("missing documentNumber column")
	}

	field := func(record []string, name string) string {
		if i, ok := col[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	number := func(record []string, name string) float64 {
		v, _ := strconv.ParseFloat(field(record, name), 64)
		return v
	}

	var cases []Case
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		app := domain.ApplicationRequest{
			DocumentNumber:      field(record, "documentnumber"),
			DocumentType:        domain.DocumentType(field(record, "documenttype")),
			Payer:               field(record, "payer"),
			DeclaredGrossIncome: number(record, "declaredgrossincome"),
			TenureYears:         int(number(record, "tenureyears")),
			RequestedAmount:     number(record, "requestedamount"),
		}
		if term := field(record, "requestedtermmonths"); term != "" {
			if n, err := strconv.Atoi(term); err == nil {
				app.RequestedTermMonths = &n
			}
		}

		cases = append(cases, Case{
			Application: app,
			Expected:    strings.ToUpper(field(record, "expected")),
		})
		if limit > 0 && len(cases) >= limit {
			break
		}
	}
	return cases, nil
}

func replay(ctx context.Context, cases []Case, baseURL, tenantID string, workers int, verbose bool) *Report {
	report := newReport()
	client := &http.Client{Timeout: 30 * time.Second}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, c := range cases {
		c := c
		g.Go(func() error {
			start := time.Now()
			resp, err := evaluate(ctx, client, baseURL, tenantID, c.Application)
			elapsed := time.Since(start)
			report.record(c, resp, elapsed, err)

			if verbose {
				if err != nil {
					fmt.Printf("ERROR %-12s %v\n", c.Application.DocumentNumber, err)
				} else {
					fmt.Printf("%-12s expected=%-24s got=%-8s %s (%s)\n",
						c.Application.DocumentNumber, c.Expected, resp.Status, resp.RejectionCode, elapsed.Round(time.Millisecond))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return report
}

func evaluate(ctx context.Context, client *http.Client, baseURL, tenantID string, app domain.ApplicationRequest) (*domain.EvaluationResponse, error) {
	body, err := json.Marshal(app)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/credit/evaluate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out domain.EvaluationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func printReport(r *Report, duration time.Duration) {
	fmt.Println()
	fmt.Println("RESULTS")
	fmt.Printf("  Processed:  %d\n", r.Processed)
	fmt.Printf("  Errors:     %d\n", r.Errors)
	if labeled := r.Agreed + r.Disagreed; labeled > 0 {
		fmt.Printf("  Agreement:  %d / %d (%.2f%%)\n", r.Agreed, labeled, 100*float64(r.Agreed)/float64(labeled))
	}

	if len(r.Confusion) > 0 {
		fmt.Println()
		fmt.Println("  expected \\ actual    APPROVED   REJECTED")
		for _, expected := range []string{domain.StatusApproved, domain.StatusRejected} {
			row := r.Confusion[expected]
			fmt.Printf("  %-20s %8d   %8d\n", expected, row[domain.StatusApproved], row[domain.StatusRejected])
		}
	}

	if len(r.Codes) > 0 {
		codes := make([]string, 0, len(r.Codes))
		for code := range r.Codes {
			codes = append(codes, string(code))
		}
		sort.Strings(codes)

		fmt.Println()
		fmt.Println("  Rejections by code:")
		for _, code := range codes {
			fmt.Printf("    %-26s %d\n", code, r.Codes[domain.RejectionCode(code)])
		}
	}

	fmt.Println()
	fmt.Printf("  Duration:   %v\n", duration.Round(time.Millisecond))
	if r.Processed > 0 {
		fmt.Printf("  Avg latency: %.2f ms\n", float64(r.Latency.Milliseconds())/float64(r.Processed))
		fmt.Printf("  Throughput:  %.2f req/sec\n", float64(r.Processed)/duration.Seconds())
	}
	fmt.Println()
}
