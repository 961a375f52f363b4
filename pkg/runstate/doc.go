// Package runstate records the outcome of the most recent tracking cycle so
// `igtracker status` can report it without opening a browser.
//
// The record is a small JSON file written atomically: a temporary file is
// synced and renamed over the previous one, so readers see either the old
// or the new record, never a partial one.
//
//	mgr, _ := runstate.NewManager(dataDir)
//	run := mgr.Begin("myaccount")
//	// ... collect and reconcile ...
//	run.Finish(runstate.OutcomeSuccess, nil)
//	_ = mgr.Save(run)
package runstate
