// Package identity decides what each request looks like and where it leaves from.
//
// Next draws a browser signature (User-Agent plus the matching header set)
// uniformly from a fixed pool. RotateEgress asks an EgressController, in
// practice the Tor control port, for a new exit; it is reserved for block
// signals and periodic freshening, since every rotation costs a settle wait.
package identity
