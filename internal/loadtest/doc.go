// Package loadtest drives a worker function at a constant request rate for a
// fixed duration and aggregates what each call reports.
//
// # Quick Start
//
//	config := loadtest.DefaultConfig("ingest")
//	config.Duration = 5 * time.Minute
//	config.TargetRPS = 100
//
//	framework := loadtest.New(config, func(ctx context.Context, id int) loadtest.Result {
//	    start := time.Now()
//	    resp, err := http.Get("http://localhost:8080/health")
//	    result := loadtest.Result{Scenario: "health", StartTime: start, Duration: time.Since(start), Error: err}
//	    if err == nil {
//	        result.StatusCode = resp.StatusCode
//	        resp.Body.Close()
//	    }
//	    return result
//	})
//
//	summary, err := framework.Run(ctx)
//
// # Results
//
// A Result fails when it carries an Error (the request never produced a
// response) or at least one entry in Violations (a response came back but
// broke the API contract). The Summary keeps the two apart: Errors counts
// transport failures by message, Violations counts contract violations by
// message, and Scenarios breaks requests, failures and violations down by
// the Result's Scenario.
//
// # Pacing
//
// Requests are paced with a token bucket at TargetRPS. When MaxConcurrency
// calls are already in flight the slot is skipped rather than queued, so a
// slow target lowers the achieved rate instead of building a backlog.
//
// # Cancellation
//
// Cancelling the context passed to Run ends the run early. Workers receive a
// context that is cancelled when the run ends; results of calls still in
// flight are counted.
package loadtest
