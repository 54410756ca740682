// Package dnfdaemon is the client side of the dnf5 package daemon's D-Bus
// API.
//
// A Client owns one daemon session, dispatches at most one asynchronous
// method call at a time and funnels every call result and every daemon
// signal into a single unbounded FIFO Queue that a frontend polls.
// Transaction lifecycle signals feed an inactivity watchdog that pushes a
// "transaction_timeout" event when the daemon goes silent mid-run.
//
// Bulk package listings travel through a pipe: the client passes the
// write end to the daemon and decodes the JSON objects it writes with
// package pipestream.
package dnfdaemon
