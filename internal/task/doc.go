// Package task runs background work off the request path. Its one job today
// is plan warm-up: a Warmer periodically enqueues a PlanGenerationTask for
// every recently active user, and a WorkerPool drains the queue so the first
// request of the day finds its plan already composed.
package task
