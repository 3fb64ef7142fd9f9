// Package harness runs conformance cases for the compiler.
//
// A case compiles a root package together with the packages it imports,
// checks the outcome against an expectation, evaluates the result with the
// reference engine and validates assertions about the emitted IR and the
// package's test definitions.
//
// # Case Format
//
// Cases are defined in YAML files with the following structure:
//
//	name: loop_outputs
//	description: "A loop hands its carried values back as outputs"
//	source: |
//	  import "lib"
//	  graph testLoop {
//	    ...
//	  }
//	packages:
//	  lib: |
//	    func double(x) {
//	      <- y = x + x
//	    }
//	foreign:
//	  - path: py/mod
//	    language: python
//	    content: "def f(x): return x"
//	expect:
//	  outcome: compiled
//	calls:
//	  - function: main
//	    args: ["2"]
//	    expect: { y: "4" }
//	assertions:
//	  - type: tests_pass
//	  - type: package_order
//	    packages: [lib, main]
//
// The root package is always named main. Instead of source, main may name a
// file holding the root package, relative to the case file.
//
// A case expecting a failure names the error code and, optionally, a
// substring of the message:
//
//	expect:
//	  outcome: failed
//	  code: E302
//	  message: "cyclic import"
//
// # Assertion Types
//
//   - package_order: the pallet holds exactly these packages, in order
//   - tests_pass: every test definition of main passes, and there is one
//   - test_fails: the named test fails with the given runtime error code
//   - ir_contains: the canonical IR document contains the text
//   - ir_excludes: the canonical IR document does not contain the text
//
// # Deterministic Testing
//
// Every case records its compilation in a fresh in-memory store with
// sequential IDs and a stepping clock, so pallet IDs and golden snapshots
// are identical across runs.
package harness
