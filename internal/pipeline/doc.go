// Package pipeline builds and supervises the per-entry process topology.
//
// For every directory entry the Orchestrator picks one of three layouts:
//
//	MetadataOnly          record rendered in-process, no worker
//	MetadataPlusConvert   record rendered in-process, converter worker rewrites the bitmap
//	MetadataPlusFilter    producer worker ──link A──▶ filter worker ──link B──▶ orchestrator
//
// Workers are real processes. Producer and converter are this binary
// re-executed with a worker verb (see RunWorker); the filter is any
// executable that reads bytes on stdin and prints one decimal count.
//
// # Descriptor Discipline
//
// A PipeLink owns both ends of an os.Pipe. Handing an end to a child is a
// move: TakeReader/TakeWriter remove it from the link and the orchestrator
// closes its copy as soon as the child has started. The orchestrator keeps
// only link B's read end, so the result read sees EOF once the filter (the
// only writer left) exits. Every other descriptor is close-on-exec, so no
// worker inherits an end it does not use.
//
// # Waiting
//
// Every started worker is waited exactly once through its WorkerHandle
// before Run returns, on success and on every error path.
//
// # Failure Policy
//
// Pipe or spawn failures abort the entry with a PipeError or SpawnError.
// A filter that exits non-zero or prints garbage degrades the count to zero
// (WorkerExitError / ParseError are logged, not returned). A converter that
// exits non-zero marks the entry ConvertFailed.
package pipeline
