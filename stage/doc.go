// Package stage defines the vertex/fragment input stage of a GPU program.
//
// A Descriptor declares the vertex and instance attribute layout of a draw,
// how many textures it samples, and contributes every bit of state that
// changes its generated shader text to a program key. Two descriptors with
// bit-identical keys are interchangeable: they share one compiled program
// and differ only in the uniform values pushed by ProgramImpl.SetData.
package stage
