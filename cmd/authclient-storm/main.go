// Command authclient-storm hammers one Session's intercepted HTTP client
// with concurrent requests while a controller keeps expiring the access
// token server-side, to measure the cost of the single-flight refresh path
// under contention. It runs fully self-contained: an in-process stub
// backend issues the tokens and miniredis backs the session store unless a
// real Redis address is supplied.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authclient "github.com/atlaspanel/authclient"
	"github.com/atlaspanel/authclient/store"
)

func main() {
	var (
		workers     = flag.Int("workers", 256, "number of concurrent request workers")
		requests    = flag.Int("requests", 100000, "total requests to issue")
		expireEvery = flag.Duration("expire-every", 250*time.Millisecond, "how often the backend expires the current access token")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "authclient-storm", "redis key prefix")
	)
	flag.Parse()

	if *workers <= 0 || *requests <= 0 {
		fmt.Fprintln(os.Stderr, "workers and requests must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  *redis.Client
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewClient(&redis.Options{Addr: addr})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend := newStormBackend()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to listen: %v\n", err)
		os.Exit(1)
	}
	server := &http.Server{Handler: backend.routes()}
	go func() { _ = server.Serve(listener) }()
	defer server.Close()
	baseURL := "http://" + listener.Addr().String()
	fmt.Printf("stub backend at %s\n", baseURL)

	sessionStore, err := store.NewRedis(client, store.RedisConfig{Prefix: *prefix})
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis store: %v\n", err)
		os.Exit(1)
	}
	session, err := authclient.NewBuilder().
		WithBaseURL(baseURL).
		WithStore(sessionStore).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "session build: %v\n", err)
		os.Exit(1)
	}
	defer session.Close()
	session.Bootstrap(ctx)

	if err := session.Login(ctx, authclient.Credentials{
		Email:    "storm@example.com",
		Password: "correct-horse",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	stopExpiry := make(chan struct{})
	go func() {
		ticker := time.NewTicker(*expireEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stopExpiry:
				return
			case <-ticker.C:
				backend.expireAccess()
			}
		}
	}()

	stats := runStorm(session, baseURL, *requests, *workers)
	close(stopExpiry)

	fmt.Println("---- results ----")
	printStats("requests", stats)
	fmt.Printf("backend refresh exchanges: %d\n", backend.refreshCalls.Load())
	snap := session.MetricsSnapshot()
	fmt.Printf("session metrics: refresh_success=%d refresh_deduped=%d retries=%d\n",
		snap.Counters[authclient.MetricRefreshSuccess],
		snap.Counters[authclient.MetricRefreshDeduped],
		snap.Counters[authclient.MetricRetryAfterRefresh],
	)
}

func runStorm(session *authclient.Session, baseURL string, requests, workers int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, requests)
		mu        sync.Mutex
	)

	httpc := session.HTTPClient()
	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= requests {
					return
				}
				t0 := time.Now()
				resp, err := httpc.Get(baseURL + "/api/data")
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else {
					if resp.StatusCode != http.StatusOK {
						atomic.AddInt64(&failures, 1)
					}
					resp.Body.Close()
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
