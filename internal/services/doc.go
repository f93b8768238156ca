// Package services defines the shared error taxonomy and context plumbing
// used by the pipeline stages.
package services
