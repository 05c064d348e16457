package broker

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"momentum-trader/internal/models"
)

// Property: Concurrent requests never leak results into each other.
//
// For any number of symbols checked concurrently, each handle sees only the
// contract records registered for its own symbol, and the pending table is
// empty once every caller has returned.
func TestProperty_RequestIsolation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Each handle sees only its own symbol's records", prop.ForAll(
		func(count int) bool {
			sim := NewSimSession()
			c := NewCorrelator(sim, count, zerolog.Nop())
			sim.Start(c)
			defer sim.Close()

			symbols := make([]string, count)
			for i := range symbols {
				symbols[i] = fmt.Sprintf("SYM%d", i)
				sim.AddContract(models.ContractDetail{
					Symbol: symbols[i], SecType: "STK", Exchange: "SMART", Currency: "USD",
				})
			}

			results := make([][]models.ContractDetail, count)
			errs := make([]error, count)
			var wg sync.WaitGroup
			for i, symbol := range symbols {
				wg.Add(1)
				go func(i int, symbol string) {
					defer wg.Done()
					h, err := c.SubmitContractDetails(c.NextRequestID(), symbol)
					if err != nil {
						errs[i] = err
						return
					}
					if err := c.Await(h, 5*time.Second); err != nil {
						errs[i] = err
						return
					}
					results[i] = h.ContractDetails()
				}(i, symbol)
			}
			wg.Wait()

			for i, symbol := range symbols {
				if errs[i] != nil {
					t.Logf("request for %s failed: %v", symbol, errs[i])
					return false
				}
				if len(results[i]) != 1 || results[i][0].Symbol != symbol {
					t.Logf("request for %s got %+v", symbol, results[i])
					return false
				}
			}
			return c.PendingCount() == 0
		},
		gen.IntRange(1, 16),
	))

	properties.TestingRun(t)
}

// Property: Request ids are unique and strictly increasing no matter how many
// goroutines allocate them.
func TestProperty_RequestIDsNeverCollide(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Concurrent NextRequestID calls yield distinct ids", prop.ForAll(
		func(goroutines, perGoroutine int) bool {
			c := NewCorrelator(silentSession{}, 8, zerolog.Nop())

			var mu sync.Mutex
			seen := make(map[int64]bool)
			collided := false

			var wg sync.WaitGroup
			for g := 0; g < goroutines; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perGoroutine; i++ {
						id := c.NextRequestID()
						mu.Lock()
						if seen[id] {
							collided = true
						}
						seen[id] = true
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			return !collided && len(seen) == goroutines*perGoroutine
		},
		gen.IntRange(2, 8),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

// Property: A timed-out request either stays pending (awaiting its terminal
// callback) or is reaped by it; a late completion never lands in a fresh
// request's results.
func TestProperty_TimeoutNeverPoisonsLaterRequests(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Late data lands only in its own abandoned entry", prop.ForAll(
		func(lateRecords int) bool {
			c := NewCorrelator(silentSession{}, 8, zerolog.Nop())

			staleID := c.NextRequestID()
			h, err := c.SubmitContractDetails(staleID, "STALE")
			if err != nil {
				return false
			}
			if err := c.Await(h, time.Millisecond); err == nil {
				return false
			}

			// A fresh request on a new id.
			freshID := c.NextRequestID()
			fresh, err := c.SubmitContractDetails(freshID, "FRESH")
			if err != nil {
				return false
			}

			// Late data for the stale id arrives after the fresh submit.
			for i := 0; i < lateRecords; i++ {
				c.ContractDetails(staleID, models.ContractDetail{Symbol: "STALE", SecType: "STK", Currency: "USD"})
			}
			c.ContractDetailsEnd(staleID)

			// Complete the fresh one with a single record.
			c.ContractDetails(freshID, models.ContractDetail{Symbol: "FRESH", SecType: "STK", Currency: "USD"})
			c.ContractDetailsEnd(freshID)

			if err := c.Await(fresh, time.Second); err != nil {
				return false
			}
			details := fresh.ContractDetails()
			if len(details) != 1 || details[0].Symbol != "FRESH" {
				t.Logf("fresh handle got %+v", details)
				return false
			}
			return c.PendingCount() == 0
		},
		gen.IntRange(0, 10),
	))

	properties.TestingRun(t)
}
