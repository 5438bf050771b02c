package common

// RequestIDHeaderName is the gRPC metadata key correlating client calls
// with server log lines.
const RequestIDHeaderName = "x-request-id"
