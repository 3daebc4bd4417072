// Package pooler is a compact reference learner for convergence runs.
//
// A ScalarEncoder turns a scalar into a contiguous block of active input
// bits. A Pooler maps those bits onto a fixed number of columns and keeps the
// k strongest as the output set, adapting permanences as it goes. A Homeostat
// watches the sweeps, turns boosting off once the newborn stage is over and
// reports stability when every input keeps producing the same set.
//
// The model is intentionally small. It reproduces the dynamics a convergence
// run cares about (early instability, then settling) and nothing more.
package pooler
