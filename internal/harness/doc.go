// Package harness runs generation scenarios end to end.
//
// A scenario names a set of annotated Rust sources, the configuration to
// generate them with, and a flow of calls made through the generated
// entry points. The harness writes the sources to a scratch project, runs
// the glue pass, scans the records back out of the glue, renders the
// Kotlin sources and then executes the flow against an in-process model
// of the boundary (package boundary), recording a trace.
//
// # Scenario Format
//
//	name: watcher_lifecycle
//	description: "What this scenario validates"
//	sources:
//	  src/lib.rs: |
//	    jni_init!("dev.example.watch");
//	    ...
//	config:
//	  library: watch
//	flow:
//	  - call: Watcher::new
//	    args: ["/srv"]
//	    bind: w
//	  - call: Watcher::limit
//	    receiver: w
//	    args: [5]
//	    returns: 10
//	    expect: 10
//	  - call: Watcher::subscribe
//	    receiver: w
//	    args:
//	      - callback: { should_continue: true }
//	    invoke:
//	      - method: should_continue
//	        expect: true
//	  - dispose: w
//	assertions:
//	  - type: file_contains
//	    path: Watcher.kt
//	    text: "fun limit(max: Int?): Long?"
//
// returns is the value the native side produces; expect is the value the
// host reads back. Class values are passed by the name they were bound to.
// Callback arguments map method names to the value the host returns, or
// to {throw: message} for a method that throws. invoke lists the calls
// the native side makes on the bridge.
//
// A scenario with expect_error must fail generation with a message
// containing it; its flow and assertions are optional.
//
// # Assertion Types
//
//   - files: the generated Kotlin files are exactly paths
//   - file_contains: a generated file contains text
//   - glue_contains: the glue contains text
//   - record_count: the glue holds count records with tag
//   - trace_contains: a call or callback appears in the trace, optionally
//     with a given result
//   - trace_count: a call appears exactly count times
//   - live_handles: count objects are still owned by the handle table
//
// # Determinism
//
// Runs use fixed run IDs and an in-memory manifest, and native objects
// are numbered in creation order, so traces are stable for golden file
// comparison (see RunWithGolden).
package harness
