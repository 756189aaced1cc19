// Package flash emulates an erasable flash partition on top of a regular
// file. The file is divided into fixed-size sectors; reads and writes are
// byte-granular while erasure works on whole sectors, restoring every byte
// to 0xFF the way NOR flash does.
//
// The partition file is locked exclusively (flock) so two processes cannot
// corrupt the same ring.
//
// Example:
//
//	area, err := flash.Open("./data/logstore.ring", flash.Options{
//	    SectorSize: 4096,
//	    Sectors:    16,
//	})
//	if err != nil { /* handle */ }
//	defer area.Close()
//	size, count := area.Geometry()
package flash
