// Package log provides structured logging for the allocator using zerolog.
//
// A single global logger is configured once via Init and specialized per
// component with WithComponent/WithExecutorID/WithContainerID, which attach
// a field and return a derived zerolog.Logger for call sites to use directly
// (Info()/Warn()/Error()/Debug() chains), matching the rest of the
// allocator's logging call sites.
package log
