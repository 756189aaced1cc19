// Package flashlog adapts the circular log store into a pkg/log output so
// ordinary log calls land on the partition.
//
// The backend forwards each formatted entry to the store as one record. A
// busy store drops the record rather than stall the caller; the store's own
// diagnostic sources are skipped so they cannot feed back into the ring.
//
//	backend := flashlog.NewBackend(store, flashlog.WithSkipSources("logstore"))
//	registry.AddOutput(backend)
package flashlog
