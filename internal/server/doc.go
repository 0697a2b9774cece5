// Package server wires the gateway together and runs its HTTP listener.
//
// Setup order:
//  1. Load the glob pattern policy and build the path guard
//  2. Create the per-caller token-bucket limiter
//  3. Wire registry, object storage and extractor into the artifact cache
//  4. Build the access facade on top of guard, probe, limiter and cache
//  5. Register routes and middleware (recovery, metrics, CORS, per-IP
//     backpressure, HMAC request signing)
//  6. Start background sweepers and serve
//
// Shutdown drains in-flight requests, stops the sweepers and evicts all
// cached extractions.
package server
