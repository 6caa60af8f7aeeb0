// Package peer is the server side of a packwire exchange. It accepts TCP
// connections, decodes MessagePack requests incrementally and answers each
// one according to the configured mode.
//
// Every connection owns its own decoder. Requests pipelined into one read
// are answered in order, one reply per request.
package peer
