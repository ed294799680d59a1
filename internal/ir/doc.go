// Package ir provides the language-neutral intermediate representation
// shared by every stage of the binding generator.
//
// This package contains type definitions and their serialization only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// IR the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - WireType and Parameter are sealed interfaces; consumers must switch
//     exhaustively over their variants
//   - Optional may nest; callers unwrap recursively with Unwrap
//   - IR nodes are values: produced once at extraction, serialized into the
//     generated glue, decoded once by the second stage, never mutated
//   - All JSON keys use snake_case and sum types are externally tagged
//   - Record payloads use MarshalCanonical so encoding is deterministic
package ir
