// Package sqlite persists engine sessions: one row per run plus the level
// changes and periodic state snapshots recorded during it.
//
// All database read/write operations for sessions belong here rather than
// in the engine packages. The engine itself never touches the database; the
// daemon drains state snapshots on the control side and hands them to the
// session store.
package sqlite
