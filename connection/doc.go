// Package connection brokers cluster connections for
// coprocessors.
//
// A Connection sends coprocessor calls to the server hosting
// a row, a region or a named server. Calls whose target is
// online on this server are short-circuited to the local
// handler without touching the network. Everything else is
// resolved through a Locator and sent through a transport
// Stub.
//
// The Broker owns one long-lived host connection that every
// coprocessor environment on the server shares, and creates
// independent connections on demand. Created connections are
// owned by whoever created them.
package connection
