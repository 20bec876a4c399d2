// Package recovery classifies embed failures and drives bounded,
// backoff-paced retries of the embedding call path.
//
// Classify turns an arbitrary raw failure into a closed-set Failure record;
// every downstream decision switches on its Kind, never on the raw shape
// again. The Orchestrator owns the per-(resource, kind) attempt counters
// and the process-wide rate-limit cooldown window.
//
// # Basic Usage
//
//	orch := recovery.New(recovery.DefaultConfig())
//
//	f := recovery.Classify(embedErr)
//	if !orch.ShouldRetry(f, resourceID) {
//		showError(recovery.UserMessage(f))
//		return
//	}
//
//	result, err := orch.Execute(ctx, f, resourceID, func(ctx context.Context) (any, error) {
//		return reembed(ctx, resourceID)
//	})
//
// Execute waits out an exponential backoff (with jitter and per-kind
// floors) before invoking the action, refreshes the embed token first for
// token-expired failures, and always surfaces the final outcome: the
// action's result, the action's failure, or ErrRetrySuppressed when no
// attempt was permitted.
//
// # Metrics
//
//   - embed_retries_total{kind} - Retry attempts by failure kind
//   - embed_retry_backoff_seconds{kind} - Backoff durations
//   - embed_retry_exhausted_total{kind} - Exhausted retry budgets
//   - embed_rate_limit_suppressed_total - Retries refused by the cooldown window
package recovery
