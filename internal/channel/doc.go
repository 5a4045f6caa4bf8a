// Package channel is the point-to-point message channel between the pool and
// one worker process.
//
// A Channel is created for a record id before the worker exists, tells the
// spawner what the worker must inherit (Attachment), and is bound to the
// live process afterwards. Messages are JSON-RPC 2.0 style requests,
// responses and notifications; their content is not interpreted here.
//
// Two transports are provided:
//
//   - PipeTransport: a pair of OS pipes inherited by the worker as fds 3
//     (worker reads) and 4 (worker writes), Content-Length framed.
//   - NATSTransport: subjects rworker.process.<id>.in and .out on a NATS
//     server, usually the embedded one started with NewServer.
//
// The worker side calls Open, which picks the transport from the
// environment the parent set up.
package channel
