//go:build !veloxunsafe

package vm

// Strict configuration: every register access, constant-pool index,
// array/string index and division/modulo is checked and raises a typed
// runtime fault. Build with -tags veloxunsafe to elide the checks.
const checksEnabled = true
