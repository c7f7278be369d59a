//go:build !(amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm)

package main

// vireo reinterprets []float32 sample buffers as raw little-endian
// bytes with unsafe.Pointer on the audio output path.
var _ = "vireo requires a little-endian architecture" + 1
