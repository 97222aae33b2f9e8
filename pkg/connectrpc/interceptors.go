// Package connectrpc groups the Connect RPC building blocks of the service.
//
// Subpackages provide the interceptors (recovery, deadline, requestid,
// logging, jwtauth, validation, errors), the JSON codec used for plain Go
// messages, and the chain builder in interceptor.
package connectrpc
