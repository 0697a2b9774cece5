// Package types defines shared data structures for the workspace gateway.
//
// It holds the filesystem snapshot types exchanged between the guard, probe,
// artifact cache, and access facade, plus the gateway's error taxonomy. All
// components return these structured values for expected conditions instead
// of raising errors, so the HTTP layer can map outcomes to statuses without
// losing information.
package types
