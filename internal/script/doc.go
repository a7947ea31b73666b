// Package script runs user JavaScript against a channel client.
//
// A Runner owns one goja runtime with the generated stubs for the client's
// API preloaded. Scripts run on the caller's goroutine, which blocks while a
// command is outstanding; the engine side is never touched directly.
//
// Blocking stubs wait for the command's terminal response. Cooperative
// ("_async") stubs return a Promise. Cooperative calls are queued and issued
// one at a time in call order, so the client never has more than one
// request outstanding. A blocking call first settles every queued
// cooperative call.
package script
