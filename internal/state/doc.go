// Package state provides filesystem-backed storage for sessions, event
// transcripts, artifacts, and scheduled tasks. Everything lives under a
// single data root so a deployment is one directory you can tar up.
package state
