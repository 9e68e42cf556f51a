// Benchmark drives concurrent transfers against a running API instance and
// reports throughput and the outcome mix as JSON.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	targetURL   string
	token       string
	concurrency int
	duration    time.Duration
	workload    string
	accounts    int
)

// Outcome tallies.
var (
	totalRequests uint64
	created       uint64 // 201
	insufficient  uint64 // 422 InsufficientFunds / invalid
	conflicts     uint64 // 409
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token for the seeded admin or load user")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&accounts, "accounts", 1000, "Number of seeded accounts")
}

func main() {
	flag.Parse()
	if token == "" {
		log.Fatal("-token is required")
	}
	log.Printf("Starting benchmark: %s | workers: %d | duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}
	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := pickAccounts()

		payload := map[string]interface{}{
			"from_account_id":    from,
			"to_identifier":      to,
			"amount_minor_units": int64(100),
			"memo":               "bench",
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&created, 1)
		case 422:
			atomic.AddUint64(&insufficient, 1)
		case 409:
			atomic.AddUint64(&conflicts, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func accountID(n int) string {
	return fmt.Sprintf("ACCT-%06d", n)
}

func pickAccounts() (string, string) {
	if workload == "hotspot" {
		// 90% of traffic bounces between the first two accounts.
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return accountID(1), accountID(2)
			}
			return accountID(2), accountID(1)
		}
	}

	a := rand.Intn(accounts) + 1
	b := rand.Intn(accounts) + 1
	for a == b {
		b = rand.Intn(accounts) + 1
	}
	return accountID(a), accountID(b)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	results := map[string]interface{}{
		"workload":          workload,
		"duration_sec":      d.Seconds(),
		"total_requests":    total,
		"throughput_tps":    float64(total) / d.Seconds(),
		"completed":         atomic.LoadUint64(&created),
		"rejected_business": atomic.LoadUint64(&insufficient),
		"conflicts":         atomic.LoadUint64(&conflicts),
		"errors":            atomic.LoadUint64(&failOther),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	file, err := os.Create(fmt.Sprintf("results_%s.json", workload))
	if err != nil {
		log.Printf("could not save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
