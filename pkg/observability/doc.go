/*
Package observability provides lifecycle hooks for monitoring the explorer.

Metrics exposes Prometheus counters for decodes and buffer disposal, and
LogHooks writes the same events to a structured logger. Both return
domain.LifecycleHooks and can be combined with domain.ChainHooks.
*/
package observability
