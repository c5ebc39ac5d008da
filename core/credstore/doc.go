// Package credstore provides a small key-value store for credential material
// with change observation, so several application instances sharing one
// backing medium can keep their view of the stored credentials in sync.
//
// # Backends
//
//   - Memory: in-process map, for tests and single-process setups
//   - File: one JSON document on disk, atomic writes, fsnotify-based Watch
//   - Redis: strings under a key prefix, pub/sub change announcements
//   - Postgres: one row per key, LISTEN/NOTIFY change announcements
//
// # Usage
//
//	store, err := credstore.NewFile(filepath.Join(home, ".sessionkit"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	changes, err := store.Watch(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	go func() {
//		for change := range changes {
//			// react to external mutations
//		}
//	}()
//
// # Semantics
//
// Watch delivery is best-effort: buffers are bounded and slow watchers lose
// changes, mirroring browser storage-event semantics. Whether a store echoes
// its own writes back to its own Watch channel is backend-dependent, so
// consumers must apply changes idempotently.
package credstore
