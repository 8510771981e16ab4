// Package contentstore defines the persistence contract the pipeline needs
// from a content store and provides the SQLite implementation the daemon runs
// with. The pipeline only depends on the Store interface; deployments backed
// by a different engine satisfy the same contract.
package contentstore
