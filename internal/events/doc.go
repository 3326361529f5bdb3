// Package events provides types and interfaces for task lifecycle events.
//
// The task manager emits an event for every task creation and status
// transition; consumers such as the audit logger subscribe through the
// EventEmitter without the manager knowing who listens. This keeps the
// orchestration core decoupled from observers.
//
// The primary components are:
// - TaskLifecycleEvent: one creation or status change of a refresh task
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
