package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentwire-dev/agentwire"
	"github.com/agentwire-dev/agentwire/internal/echoagent"
)

type benchOptions struct {
	url          string
	project      string
	agent        string
	clients      int
	duration     time.Duration
	rps          float64
	payloadBytes int
}

func benchCmd() *cobra.Command {
	var opts benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load-test an agent endpoint and report round-trip latency",
		Long: `Bench drives N concurrent clients against an agent endpoint. Each
client sends calls at a target rate, gated on the response, and the
round-trip of every call is sampled:

  call encoded → wire → agent → response → wire → decoded + correlated

Without --url an in-process echo agent is started, which measures the
SDK and protocol stack by itself. Point --url at a deployment to
measure a real agent.

Examples:
  agentwire bench
  agentwire bench -n 200 --duration 30s --rps 5
  agentwire bench --url wss://agents.example.com -a support-bot --project prod`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "", "Service URL (empty runs an in-process echo agent)")
	cmd.Flags().StringVar(&opts.project, "project", "bench", "Project ID")
	cmd.Flags().StringVarP(&opts.agent, "agent", "a", "bench", "Agent lookup key")
	cmd.Flags().IntVarP(&opts.clients, "clients", "n", 50, "Number of concurrent clients")
	cmd.Flags().DurationVar(&opts.duration, "duration", 10*time.Second, "How long to run the load test")
	cmd.Flags().Float64Var(&opts.rps, "rps", 5, "Target calls/sec per client (best-effort, response-gated)")
	cmd.Flags().IntVar(&opts.payloadBytes, "payload-bytes", 64, "Bytes of token payload per call")

	return cmd
}

func runBench(opts benchOptions) error {
	if opts.clients <= 0 {
		return fmt.Errorf("--clients must be > 0")
	}
	if opts.duration <= 0 {
		return fmt.Errorf("--duration must be > 0")
	}
	if opts.rps <= 0 {
		return fmt.Errorf("--rps must be > 0")
	}
	if opts.payloadBytes < 0 {
		return fmt.Errorf("--payload-bytes must be >= 0")
	}

	// Reduce incidental variability a bit.
	debug.SetGCPercent(100)

	if opts.url == "" {
		agent := echoagent.New(echoagent.Config{
			ProjectID: opts.project,
			Logger:    newLogger(false),
		})
		ln, err := net.Listen("tcp4", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		httpServer := &http.Server{Handler: agent.Handler()}
		go func() {
			_ = httpServer.Serve(ln)
		}()
		defer func() {
			_ = httpServer.Shutdown(context.Background())
		}()
		opts.url = "ws://" + ln.Addr().String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	samplesCh := make(chan time.Duration, 1024)
	var samples []time.Duration
	var samplesMu sync.Mutex
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for rtt := range samplesCh {
			samplesMu.Lock()
			samples = append(samples, rtt)
			samplesMu.Unlock()
		}
	}()

	var (
		totalCalls  atomic.Uint64
		totalErrors atomic.Uint64
	)

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	beforeMetrics := readRuntimeMetrics()

	var wg sync.WaitGroup
	wg.Add(opts.clients)
	for i := 0; i < opts.clients; i++ {
		clientID := i
		go func() {
			defer wg.Done()
			if err := benchClient(ctx, opts, clientID, samplesCh, &totalCalls); err != nil {
				totalErrors.Add(1)
			}
		}()
	}

	wg.Wait()
	close(samplesCh)
	<-collectorDone

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)
	afterMetrics := readRuntimeMetrics()

	samplesMu.Lock()
	latencies := append([]time.Duration(nil), samples...)
	samplesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	total := totalCalls.Load()
	errs := totalErrors.Load()
	runSeconds := math.Max(0.001, opts.duration.Seconds())

	fmt.Println("=== AgentWire Load Benchmark ===")
	fmt.Printf("Endpoint: %s\n", opts.url)
	fmt.Printf("Clients: %d\n", opts.clients)
	fmt.Printf("Duration: %s\n", opts.duration)
	fmt.Printf("Target per-client rate: %.2f calls/s\n", opts.rps)
	fmt.Printf("Payload bytes: %d\n", opts.payloadBytes)
	fmt.Printf("Total calls: %d\n", total)
	fmt.Printf("Errors: %d\n", errs)
	fmt.Printf("Throughput: %.1f calls/s\n", float64(total)/runSeconds)
	fmt.Println()

	if len(latencies) == 0 {
		fmt.Println("No latency samples recorded.")
	} else {
		fmt.Println("RTT (call encoded → agent → response decoded):")
		fmt.Printf("  min: %s\n", latencies[0])
		fmt.Printf("  p50: %s\n", percentile(latencies, 0.50))
		fmt.Printf("  p95: %s\n", percentile(latencies, 0.95))
		fmt.Printf("  p99: %s\n", percentile(latencies, 0.99))
		fmt.Printf("  max: %s\n", latencies[len(latencies)-1])
	}
	fmt.Println()

	fmt.Println("Go runtime / GC (process-wide):")
	fmt.Printf("  alloc:     %.2f MB\n", float64(after.TotalAlloc-before.TotalAlloc)/(1024*1024))
	fmt.Printf("  heap_live: %.2f MB\n", float64(after.HeapAlloc)/(1024*1024))
	fmt.Printf("  num_gc:    %d\n", after.NumGC-before.NumGC)
	fmt.Printf("  gc_pause:  %s (total)\n", time.Duration(after.PauseTotalNs-before.PauseTotalNs))
	fmt.Printf("  gc_pause:  %s (avg)\n", avgPause(after, before))
	fmt.Printf("  gc_cpu:    %.2f%%\n", 100*cpuFraction(afterMetrics, beforeMetrics))
	fmt.Printf("  allocs:    %.2f M objects\n", float64(afterMetrics.heapAllocsObjects-beforeMetrics.heapAllocsObjects)/1_000_000)

	if errs > 0 {
		return fmt.Errorf("%d of %d clients failed", errs, opts.clients)
	}
	return nil
}

type benchInput struct {
	Token string `json:"token"`
}

// benchClient runs one client loop: connect, then call at the target
// rate until the deadline, correlating each response by token.
func benchClient(ctx context.Context, opts benchOptions, clientID int, samples chan<- time.Duration, totalCalls *atomic.Uint64) error {
	cfg := &agentwire.Config{
		ServiceURL: opts.url,
		ProjectID:  opts.project,
		Agent:      opts.agent,
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := agentwire.NewClient(cfg, agentwire.WithLogger(quiet))
	if err != nil {
		return err
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer client.Disconnect()

	period := time.Duration(float64(time.Second) / opts.rps)
	var seq uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		seq++
		token := makeToken(clientID, seq, opts.payloadBytes)

		start := time.Now()
		out, err := client.Call(ctx, "echo", benchInput{Token: token})
		if err != nil {
			// The deadline expiring mid-call is a clean stop, not a
			// failure of the endpoint.
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("call: %w", err)
		}
		var echoed benchInput
		if err := json.Unmarshal(out, &echoed); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if echoed.Token != token {
			return fmt.Errorf("response token mismatch")
		}

		rtt := time.Since(start)
		totalCalls.Add(1)
		samples <- rtt

		// Best-effort pacing, gated on the response to expose real
		// queueing and tail behavior.
		elapsed := time.Since(start)
		if sleep := period - elapsed; sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

func makeToken(clientID int, seq uint64, payloadBytes int) string {
	// Always include client+seq for debugging, then pad with random bytes.
	prefix := fmt.Sprintf("c%d:%d:", clientID, seq)
	if payloadBytes <= len(prefix) {
		return prefix[:payloadBytes]
	}

	need := payloadBytes - len(prefix)
	raw := make([]byte, (need+1)/2)
	_, _ = rand.Read(raw)
	suffix := hex.EncodeToString(raw)
	if len(suffix) > need {
		suffix = suffix[:need]
	}
	return prefix + suffix
}

func avgPause(after, before runtime.MemStats) time.Duration {
	gcCount := after.NumGC - before.NumGC
	if gcCount == 0 {
		return 0
	}
	return time.Duration((after.PauseTotalNs - before.PauseTotalNs) / uint64(gcCount))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type runtimeMetricsSnapshot struct {
	cpuTotalSeconds float64
	cpuGCSeconds    float64

	heapAllocsObjects uint64
}

func readRuntimeMetrics() runtimeMetricsSnapshot {
	samples := []metrics.Sample{
		{Name: "/cpu/classes/total:cpu-seconds"},
		{Name: "/cpu/classes/gc/total:cpu-seconds"},
		{Name: "/gc/heap/allocs:objects"},
	}
	metrics.Read(samples)

	var out runtimeMetricsSnapshot
	for _, s := range samples {
		switch s.Name {
		case "/cpu/classes/total:cpu-seconds":
			out.cpuTotalSeconds = s.Value.Float64()
		case "/cpu/classes/gc/total:cpu-seconds":
			out.cpuGCSeconds = s.Value.Float64()
		case "/gc/heap/allocs:objects":
			out.heapAllocsObjects = s.Value.Uint64()
		}
	}
	return out
}

func cpuFraction(after, before runtimeMetricsSnapshot) float64 {
	total := after.cpuTotalSeconds - before.cpuTotalSeconds
	if total <= 0 {
		return 0
	}
	gc := after.cpuGCSeconds - before.cpuGCSeconds
	if gc < 0 {
		return 0
	}
	return gc / total
}
