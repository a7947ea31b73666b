// Package channel connects a script-side Client to an engine-side Server.
//
// A channel pair is created by one of the transport constructors:
//
//	client, server := channel.InProcess(api)             // same process, shared queues
//	client, server, err := channel.SharedRing(api, 1<<16) // framed byte rings, no shared values
//
// Both transports give the same contract: two independent FIFO directions,
// non-blocking sends and polls, and a hard ErrDisconnected once either side
// has been closed. Only the client may block, in Call, by polling with a
// fixed backoff until the matching response arrives.
package channel
