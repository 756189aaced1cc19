// Package pebblestore provides a thin wrapper around Pebble with fsync
// policy and minimal metrics hooks. It backs the device settings store.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    DataDir: "./data/settings",
//	    Fsync:   pebblestore.FsyncModeAlways,
//	})
//	if err != nil { /* handle */ }
//	defer db.Close()
//
//	_ = db.Set([]byte("k"), []byte("v"))
//	v, err := db.Get([]byte("k")) // ErrNotFound when missing
package pebblestore
