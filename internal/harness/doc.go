// Package harness runs YAML mutation scenarios against the reducer and
// checks the resulting document with inline assertions and golden files.
//
// A scenario is a named sequence of wire-form mutations folded over an
// empty document. Golden files hold the canonical form of the final
// document, so a scenario doubles as a convergence fixture: any replica
// applying the same sequence must reproduce the golden bytes.
package harness
