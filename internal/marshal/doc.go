// Package marshal generates the native side of every boundary crossing.
//
// Conversions are planned as data first (Step trees) and rendered to
// native source afterwards, so the same plan can be inspected by tests or
// executed by the boundary simulator. The generator never guesses: a type
// it cannot carry in a given direction is a generation-time error, never
// silently skipped code.
//
// Entry points follow one fixed sequence with no suspension point:
//
//	unmarshal parameters (declaration order)
//	    -> call (receiver first)
//	    -> release checked-out handles
//	    -> marshal the return value
//	    -> return
package marshal
