// Package loglevel applies and persists the runtime log level policy.
//
// On startup the policy loads the persisted level, falls back to the
// configured default when nothing valid is stored, clamps anything below
// the configured floor, and pushes the result to every registered log
// source. Later changes go through Set, which applies first and persists
// second, so a dying settings store can never mute the process.
package loglevel
