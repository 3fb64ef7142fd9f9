// Package engine is a reference evaluator for compiled pallets.
//
// It runs the final IR of a pallet with scalar semantics: numbers are exact
// decimals, tensors are nested lists, and the builtin namespace provides
// arithmetic, comparison, logic, identity and Assert. It exists to check
// what compiled programs compute; it is not a tensor backend.
//
// EVALUATION:
//
// Packages are evaluated in pallet order, so every import is evaluated
// before the packages that use it. Top-level bindings of a package form its
// namespace. A definition evaluates to a closure over the frame it was
// defined in. Applying it checks attribute currying, binds inputs, runs the
// body and collects the declared outputs.
//
// A while loop keeps its carried variables in a loop frame. After each
// iteration every output of the body is written back to the carried
// variable of the same name.
//
// TERMINATION:
//
//   - Loop quota: each loop may run at most WithMaxSteps iterations
//   - Recursion: a definition may not be applied while it is already running
//
// Together they guarantee that evaluation terminates.
package engine
