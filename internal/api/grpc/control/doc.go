// Package control implements the gRPC control API of the daemon,
// breakfast.v1.Control.
//
// Messages are well-known google.protobuf.Struct values, so the service is
// described by a hand-written grpc.ServiceDesc and needs no generated code.
// The server adapts requests to a business-service interface; the client is
// what the CLI uses.
package control
