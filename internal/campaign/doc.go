// Package campaign defines the service-layer contracts of the dispatch
// engine: the campaign store, the lead source and the recipient resolver.
// Storage implementations live in internal/repository.
package campaign
