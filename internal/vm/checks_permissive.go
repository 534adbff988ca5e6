//go:build veloxunsafe

package vm

// Permissive configuration: bounds, zero-divisor and variant checks are
// elided for throughput. Out-of-range access is undefined behavior by
// design; opcode semantics are unchanged.
const checksEnabled = false
