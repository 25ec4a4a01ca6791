// Package pipeline defines the contract between the job orchestrator and the
// GraphGen generation pipeline, the configuration document the pipeline runs
// under, and the GraphGen runner itself.
//
// A Runner is a single blocking call: given a fully merged Config and a unique
// working directory it performs its steps in order, writes its log file and
// artifacts under that directory, and returns either a Result or an error.
// Callers treat it as opaque and never retry it.
package pipeline
