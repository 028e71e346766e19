// Package pipeline drives the loom instrumentation sequence: clone,
// inject-hook, an optional inline merge of the runtime stub, codegen and
// the final link. Every stage is an external process; the package only
// plans the invocations, runs them strictly in order and stops at the
// first one that fails.
//
// Intermediate artifacts are written next to the input with the stage
// number appended (input1, input2, input3, input4.s) and are left on disk
// after the run.
package pipeline
