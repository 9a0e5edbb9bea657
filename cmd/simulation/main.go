package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/motorbid/auction-api/internal/auth"
)

const (
	serverAddress = "http://localhost:8080"
	bidsPerBidder = 5
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes min, max, mean, median, p95 and p99 durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// simulationClient drives the auction API over HTTP
type simulationClient struct {
	baseURL     string
	sweepSecret string
	client      *http.Client

	mu    sync.Mutex
	stats map[string]*routeStats
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL:     serverAddress,
		sweepSecret: getEnv("SWEEP_SECRET", "sweep-dev-secret"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"listing": {name: "Create Listing"},
			"approve": {name: "Approve Listing"},
			"deposit": {name: "Create Deposit"},
			"bid":     {name: "Place Bid"},
			"history": {name: "Bid History"},
			"detail":  {name: "Auction Detail"},
			"settle":  {name: "End Auction"},
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (sc *simulationClient) record(stat string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[stat].addDuration(time.Since(start))
	if failed {
		sc.stats[stat].failures++
	}
}

func (sc *simulationClient) request(stat, method, path, token string, body, out interface{}) error {
	start := time.Now()
	failed := true
	defer func() { sc.record(stat, start, failed) }()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if stat == "approve" || stat == "settle" {
		req.Header.Set("X-Sweep-Secret", sc.sweepSecret)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("invalid response (%d): %s", resp.StatusCode, raw)
	}
	if !env.Success {
		code := "UNKNOWN"
		if env.Error != nil {
			code = env.Error.Code
		}
		return fmt.Errorf("%s %s rejected: %s", method, path, code)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return err
		}
	}

	failed = false
	return nil
}

func (sc *simulationClient) authenticate(creds auth.Credentials) (string, error) {
	var data struct {
		Token string `json:"jwt_token"`
	}
	err := sc.request("auth", http.MethodPost, "/api/v1/auth/token", "", map[string]string{
		"api_key":    creds.APIKey,
		"api_secret": creds.APISecret,
	}, &data)
	return data.Token, err
}

// main runs one full auction lifecycle against a local server: listing,
// approval, deposits, a burst of competing bids, then settlement. The server
// should run with DEPOSIT_BYPASS=true so deposits confirm without a gateway.
func main() {
	sc := newSimulationClient()

	sellerToken, err := sc.authenticate(auth.Credentials{APIKey: auth.TestAPIKey, APISecret: auth.TestAPISecret})
	if err != nil {
		log.Fatal().Err(err).Msg("seller authentication failed, is the server running?")
	}

	bidders := make(map[string]string, len(auth.DemoBidders))
	for _, creds := range auth.DemoBidders {
		token, err := sc.authenticate(creds)
		if err != nil {
			log.Fatal().Err(err).Str("bidder", creds.APIKey).Msg("bidder authentication failed")
		}
		bidders[creds.APIKey] = token
	}

	// Seller lists a car
	var listing struct {
		AuctionID string `json:"auction_id"`
	}
	err = sc.request("listing", http.MethodPost, "/api/v1/auctions", sellerToken, map[string]interface{}{
		"make":             "Volvo",
		"model":            "XC60",
		"year":             2021,
		"starting_price":   "50000",
		"bid_increment":    "500",
		"auto_extend_secs": 300,
	}, &listing)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create listing")
	}
	log.Info().Str("auction_id", listing.AuctionID).Msg("created listing")

	// Operator approves with a short bidding window
	endTime := time.Now().Add(30 * time.Second)
	err = sc.request("approve", http.MethodPost,
		"/api/v1/internal/auctions/"+listing.AuctionID+"/approve", "",
		map[string]interface{}{"end_time": endTime}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to approve listing")
	}

	// Every bidder pays the deposit
	for bidder, token := range bidders {
		err := sc.request("deposit", http.MethodPost,
			"/api/v1/auctions/"+listing.AuctionID+"/deposit", token, nil, nil)
		if err != nil {
			log.Fatal().Err(err).Str("bidder", bidder).Msg("failed to create deposit, is DEPOSIT_BYPASS set on the server?")
		}
	}
	log.Info().Int("bidders", len(bidders)).Msg("deposits confirmed")

	// Concurrent bidding burst: rejections for stale amounts are expected
	var wg sync.WaitGroup
	var accepted, rejected int
	var counterMu sync.Mutex

	for bidder, token := range bidders {
		wg.Add(1)
		go func(bidder, token string) {
			defer wg.Done()
			amount := decimal.NewFromInt(50500)
			for i := 0; i < bidsPerBidder; i++ {
				err := sc.request("bid", http.MethodPost,
					"/api/v1/auctions/"+listing.AuctionID+"/bids", token,
					map[string]interface{}{"amount": amount}, nil)

				counterMu.Lock()
				if err != nil {
					rejected++
				} else {
					accepted++
				}
				counterMu.Unlock()

				amount = amount.Add(decimal.NewFromInt(1500))
				time.Sleep(50 * time.Millisecond)
			}
		}(bidder, token)
	}
	wg.Wait()
	log.Info().Int("accepted", accepted).Int("rejected", rejected).Msg("bidding burst finished")

	var history []struct {
		BidderID string          `json:"bidder_id"`
		Amount   decimal.Decimal `json:"amount"`
		IsLeader bool            `json:"is_leader"`
	}
	if err := sc.request("history", http.MethodGet,
		"/api/v1/auctions/"+listing.AuctionID+"/bids", "", nil, &history); err != nil {
		log.Fatal().Err(err).Msg("failed to fetch bid history")
	}
	if len(history) > 0 {
		log.Info().
			Str("leader", history[0].BidderID).
			Str("amount", history[0].Amount.String()).
			Msg("current leader")
	}

	// Wait out the bidding window, polling because late bids auto-extend it
	log.Info().Time("end_time", endTime).Msg("waiting for the bidding window to close")
	for {
		var detail struct {
			TemporalState string `json:"temporal_state"`
		}
		if err := sc.request("detail", http.MethodGet,
			"/api/v1/auctions/"+listing.AuctionID, "", nil, &detail); err != nil {
			log.Fatal().Err(err).Msg("failed to poll auction state")
		}
		if detail.TemporalState == "ENDED" {
			break
		}
		time.Sleep(5 * time.Second)
	}

	var result struct {
		Status string `json:"status"`
		Winner *struct {
			BidderID string          `json:"bidder_id"`
			Amount   decimal.Decimal `json:"amount"`
		} `json:"winner"`
		Deposits struct {
			WinnerApplied    bool `json:"winner_applied"`
			RefundsProcessed int  `json:"refunds_processed"`
			RefundsFailed    int  `json:"refunds_failed"`
		} `json:"deposits"`
	}
	err = sc.request("settle", http.MethodPost,
		"/api/v1/internal/settlement/"+listing.AuctionID, "", nil, &result)
	if err != nil {
		log.Fatal().Err(err).Msg("settlement failed")
	}

	event := log.Info().Str("status", result.Status).
		Bool("winner_applied", result.Deposits.WinnerApplied).
		Int("refunds_processed", result.Deposits.RefundsProcessed).
		Int("refunds_failed", result.Deposits.RefundsFailed)
	if result.Winner != nil {
		event = event.Str("winner", result.Winner.BidderID).Str("amount", result.Winner.Amount.String())
	}
	event.Msg("auction settled")

	sc.printStats()
}

func (sc *simulationClient) printStats() {
	fmt.Println("\nRoute statistics:")
	for _, rs := range sc.stats {
		if rs.totalCalls == 0 {
			continue
		}
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("  %-16s calls=%-4d failures=%-3d min=%s max=%s mean=%s median=%s p95=%s p99=%s\n",
			rs.name, rs.totalCalls, rs.failures, min, max, mean, median, p95, p99)
	}
}
