// Package gpucore holds the backend-agnostic vocabulary shared by every
// gpucmd package: opaque resource IDs, rectangles, anti-aliasing modes,
// texture proxies, device capabilities and the bit-packing KeyBuilder used
// to derive program cache keys.
//
// gpucore has no dependency on any other gpucmd package.
package gpucore
