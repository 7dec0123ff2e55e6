//go:build !linux

package engine

// O_DIRECT is linux specific; elsewhere direct I/O is a no-op
const oDirect = 0
