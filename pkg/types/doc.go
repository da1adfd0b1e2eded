// Package types contains the shared data model for ccmgr: sources,
// deployment mappings, deployed-file records, and the interfaces that
// decouple the deployment engine from the filesystem and the terminal.
package types
