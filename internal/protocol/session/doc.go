// Package session drives one MessagePack request/response exchange over a
// byte stream.
//
// Ownership boundary:
// - stream adapter contract and TCP dialer
// - connect/write/read-loop orchestration around protocol.Decoder
// - scoped release of the stream and decoder buffer on every exit path
//
// The package never logs; every failure is a wrapped sentinel error.
package session
