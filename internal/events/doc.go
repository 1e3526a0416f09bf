// Package events provides types and interfaces for an event-driven architecture.
//
// Services emit events without knowing which handlers will process them. The
// scheduler emits ReviewRecorded after a rating commits; the plan composer
// handles it to mark the problem completed in today's plan.
//
// The primary components are:
// - Event: an envelope with a type and a JSON payload
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
