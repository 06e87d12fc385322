// Package dedup holds the shared visited-set store and the named lock that
// serializes batch-completion handling within one coordinator process.
package dedup

// visitedKey is the Redis key holding a task's set of dispatched URLs.
func visitedKey(taskID string) string {
	return "tasks:" + taskID + ":visitedLinks"
}
