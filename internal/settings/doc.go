// Package settings is a small schema-checked key/value store for device
// settings, persisted in Pebble.
//
// Every key is declared up front with a fixed value size, a compiled-in
// default, and a resettable flag. Reads of keys that were never written
// return the default, so callers see a value for every declared key from
// first boot. ResetDefaults deletes only resettable keys; ResetAll wipes
// everything, including keys meant to survive a factory reset.
//
// Example:
//
//	st, err := settings.Open(db, settings.Schema())
//	if err != nil { /* handle */ }
//	lvl, _ := st.GetUint8(settings.KeyLogLevel)
//	_ = st.SetUint8(settings.KeyLogLevel, lvl)
package settings
