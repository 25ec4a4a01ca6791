// Package events publishes job lifecycle transitions to interested components
// such as the audit store, without the job package depending on them.
package events
