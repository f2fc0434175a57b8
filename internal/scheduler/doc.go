// Package scheduler arms at most one alarm at a time.
//
// An alarm is a wall-clock time of day plus a command. The next fire
// instant is today at that time, or tomorrow when that instant is not in the
// future. Arming a new alarm supersedes the pending one; cancelling is
// idempotent; a fired alarm is claimed exactly once.
package scheduler
