// Package net provides the client side of the fawldb binary protocol:
// a framed TCP connection and a pool of them.
package net
