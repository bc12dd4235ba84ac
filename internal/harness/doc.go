// Package harness runs value scenarios: YAML files that load values into a
// fresh runtime, apply structural operations to them and check the results.
//
// A scenario looks like:
//
//	name: joins
//	description: Joining typed lists.
//	enums:
//	  sym: [a, b, c]
//	steps:
//	  - op: load
//	    as: x
//	    value: {type: long, list: [1, 2]}
//	  - op: join
//	    args: [x, x]
//	    expect: "1 2 1 2"
//	assertions:
//	  - type: trace_count
//	    op: join
//	    count: 1
//
// Loaded values are read back from the runtime without copying, as they
// would arrive from q, so every step exercises the borrowed view. After the
// assertions the harness releases what it loaded and fails the run if the
// runtime still holds objects beyond its enum domains.
//
// Each run produces a trace with one line per step; tests compare it against
// golden files under testdata/golden.
package harness
