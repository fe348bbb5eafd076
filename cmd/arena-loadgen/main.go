// Package main - arena-loadgen
// Load generator: N trainers open battles against the automated opponent and
// spam attacks over WebSocket until the test duration runs out.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
)

// Config for the load generator
type Config struct {
	BaseURL        string
	NumClients     int
	FirstTrainer   int
	ActionInterval time.Duration
	TestDuration   time.Duration
}

// Stats tracks performance metrics
type Stats struct {
	BattlesCreated   int64
	BattlesFinished  int64
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func (s *Stats) observe(d time.Duration) {
	s.mu.Lock()
	s.Latencies = append(s.Latencies, d)
	s.mu.Unlock()
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type serverMessage struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

var errBattleOver = errors.New("battle over")

func main() {
	baseURL := flag.String("url", "http://localhost:3001", "Arena server base URL")
	numClients := flag.Int("clients", 50, "Number of concurrent trainers")
	firstTrainer := flag.Int("first-trainer", 1, "Trainer id of the first client")
	interval := flag.Duration("interval", 300*time.Millisecond, "Attack interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	flag.Parse()

	config := Config{
		BaseURL:        *baseURL,
		NumClients:     *numClients,
		FirstTrainer:   *firstTrainer,
		ActionInterval: *interval,
		TestDuration:   *duration,
	}

	fmt.Println("=========================================")
	fmt.Println("ARENA LOADGEN")
	fmt.Println("=========================================")
	fmt.Printf("Server: %s\n", config.BaseURL)
	fmt.Printf("Clients: %d (trainers %d..%d)\n", config.NumClients, config.FirstTrainer, config.FirstTrainer+config.NumClients-1)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	stats := runLoad(ctx, config)
	printResults(stats, config)
}

func runLoad(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup
	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(trainerID int) {
			defer wg.Done()
			runTrainer(ctx, trainerID, config, stats)
		}(config.FirstTrainer + i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d clients started\n\n", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: battles=%d sent=%d recv=%d errors=%d\n",
					atomic.LoadInt64(&stats.BattlesCreated),
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

// runTrainer plays battles back to back until the context ends.
func runTrainer(ctx context.Context, trainerID int, config Config, stats *Stats) {
	for ctx.Err() == nil {
		battleID, err := createBattle(ctx, config.BaseURL, trainerID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("Trainer %d: create battle failed: %v", trainerID, err)
				atomic.AddInt64(&stats.Errors, 1)
			}
			return
		}
		atomic.AddInt64(&stats.BattlesCreated, 1)

		err = playBattle(ctx, trainerID, battleID, config, stats)
		switch {
		case errors.Is(err, errBattleOver):
			atomic.AddInt64(&stats.BattlesFinished, 1)
		case err != nil && ctx.Err() == nil:
			log.Printf("Trainer %d: battle %s aborted: %v", trainerID, battleID, err)
			atomic.AddInt64(&stats.Errors, 1)
			return
		}
	}
}

func createBattle(ctx context.Context, baseURL string, trainerID int) (string, error) {
	body, _ := json.Marshal(map[string]int{"opponent_id": 0})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/battles/interactive", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Trainer-ID", strconv.Itoa(trainerID))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, env.Message)
	}
	var view struct {
		BattleID string `json:"battle_id"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		return "", err
	}
	return view.BattleID, nil
}

func playBattle(ctx context.Context, trainerID int, battleID string, config Config, stats *Stats) error {
	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return err
	}
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = url.Values{"battle_id": {battleID}}.Encode()

	header := http.Header{}
	header.Set("X-Trainer-ID", strconv.Itoa(trainerID))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Replies to our own actions; broadcast events are only counted.
	replies := make(chan serverMessage, 8)
	go func() {
		defer close(replies)
		for {
			var msg serverMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			if msg.Type == "ACTION_RESULT" || msg.Type == "ERROR" {
				replies <- msg
			}
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		start := time.Now()
		action := map[string]interface{}{
			"type":      "ATTACK",
			"battle_id": battleID,
			"payload":   map[string]int{"move_index": 0},
		}
		if err := conn.WriteJSON(action); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		atomic.AddInt64(&stats.MessagesSent, 1)

		var reply serverMessage
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-replies:
			if !ok {
				return errors.New("connection closed")
			}
			reply = msg
		}
		stats.observe(time.Since(start))

		if reply.Type == "ERROR" {
			if reply.Code == "RULE_VIOLATION" {
				// Finished battles and rate limiting both land here.
				atomic.AddInt64(&stats.Errors, 1)
				return errBattleOver
			}
			return fmt.Errorf("%s: %s", reply.Code, reply.Message)
		}
		var view struct {
			Finished bool `json:"is_finished"`
		}
		if json.Unmarshal(reply.Data, &view) == nil && view.Finished {
			return errBattleOver
		}
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	created := atomic.LoadInt64(&stats.BattlesCreated)
	finished := atomic.LoadInt64(&stats.BattlesFinished)

	fmt.Printf("Battles Created:   %s\n", humanize.Comma(created))
	fmt.Printf("Battles Finished:  %s\n", humanize.Comma(finished))
	fmt.Printf("Messages Sent:     %s\n", humanize.Comma(sent))
	fmt.Printf("Messages Received: %s\n", humanize.Comma(recv))
	fmt.Printf("Errors:            %s\n", humanize.Comma(errs))
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %.2f actions/sec\n", throughput)

	var avg time.Duration
	if len(stats.Latencies) > 0 {
		var total time.Duration
		minL, maxL := stats.Latencies[0], stats.Latencies[0]
		for _, l := range stats.Latencies {
			total += l
			minL = min(minL, l)
			maxL = max(maxL, l)
		}
		avg = total / time.Duration(len(stats.Latencies))

		fmt.Printf("\nRound-trip latency:\n")
		fmt.Printf("  Min: %v\n", minL)
		fmt.Printf("  Avg: %v\n", avg)
		fmt.Printf("  Max: %v\n", maxL)
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case sent == 0:
		fmt.Println("TEST FAILED: no actions were sent")
	case float64(errs)/float64(sent) < 0.05:
		fmt.Println("TEST PASSED: server handled the load")
	default:
		fmt.Println("TEST WARNING: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"battles_created":    created,
		"battles_finished":   finished,
		"messages_sent":      sent,
		"messages_received":  recv,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"avg_latency_ms":     float64(avg) / float64(time.Millisecond),
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	os.WriteFile("loadgen_results.json", jsonData, 0644)
	fmt.Println("\nResults saved to loadgen_results.json")
}
