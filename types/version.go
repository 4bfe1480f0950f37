package types

// Version is the canonical project version.
// The CLI, the status snapshot format and the transfer journal schema
// share this version.
const Version = "0.3.0"
