// Package scriptlab provides a stateful script-session runtime: scripts
// compile and run against named sessions whose top-level variables stay
// alive between runs for interactive inspection and follow-up expression
// evaluation.
//
// The runtime is built around pluggable service layers:
//
//   - runner    – compilation and isolated worker execution
//   - evaluator – expression evaluation against live session globals
//   - inspector – bounded, lazy variable views
//   - module    – reference resolution for source and host modules
//   - event     – status and console notifications
//
// Scriptlab is designed to be embedded in host applications. End-users
// typically interact through the high-level Service façade exposed by the
// root package:
//
//	srv := scriptlab.New()
//	rt := srv.Runtime()
//	result, _ := rt.RunAndWait(ctx, &runner.Input{SessionID: "demo", MainSource: "var x = 42"}, time.Minute)
//	out, _ := rt.Evaluate(ctx, "demo", "x + 1", false)
//
// For more details see the README and individual sub-packages.
package scriptlab
