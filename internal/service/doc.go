// Package service contains the application use cases. Subpackages implement
// the scheduler, the daily plan composer, the retry policy and token
// validation; this package holds what they share.
//
// Services depend on the interfaces in internal/store and the domain types,
// never on a specific storage backend. Dependencies are injected through
// constructors.
package service
