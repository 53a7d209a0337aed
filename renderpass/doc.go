// Package renderpass sequences the calls that turn bound state into GPU
// draws.
//
// A Pass moves through three states. Begin leaves it NotConfigured. A
// successful BindPipeline moves it to Ok; a refused one to FailedToBind,
// where dynamic state calls are ignored and draws are refused until the
// next bind. While Ok, the pass records which dynamic state classes
// (scissor, textures, vertex and instance buffers) the bound program needs
// and, in debug builds, asserts they were all supplied before each draw.
//
// Backends implement Executor and may rely on the pass having validated
// call order, so they never re-check it.
package renderpass
