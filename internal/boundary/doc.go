// Package boundary executes marshaling plans against an in-process model
// of the host boundary.
//
// The model mirrors the generated runtime: boundary primitives (JInt,
// JLong, JFloat, JDouble, JBoolean), host objects (*Object, nil is the
// null reference), and the generational handle table that owns native
// objects while the host holds them. A Machine interprets the steps
// planned by package marshal, so the same plans that are rendered into
// the glue can be checked for symmetry and lifecycle behavior without a
// JVM.
package boundary
