// Package service implements the HTTP API of a blocknet node.
//
//  GET /stats     connected peers and their counters
//  GET /topology  nodes known by the local node
//  GET /metrics   prometheus metrics
package service
