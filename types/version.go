package types

// Version is the canonical project version. The CLI, the worker binary,
// and the IPC framing share this version per the lockstep versioning
// policy.
const Version = "0.3.0"
