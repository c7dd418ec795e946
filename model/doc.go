// Package model defines the data types exchanged between the script session
// runtime and its callers: session statuses, variable views, diagnostics and
// the execution result envelope.
package model
