// Package model defines the provider‑agnostic request/result contract for
// querying inference endpoints inside ModelBridge, plus the shared plumbing
// every backend uses: message assembly, bounded retry of transient failures,
// call budgeting and the typed error taxonomy.
//
// Core goals:
//   - Keep request/result shapes minimal and transport independent
//   - Normalize forced function calling (FuncSpec in, Structured out)
//   - Centralize retry semantics so provider SDK retries stay disabled
//   - Facilitate lightweight mocking for tests (MockBackend)
//
// Providers (e.g. OpenAI, Anthropic) implement the Backend interface from
// this package so callers remain decoupled from vendor SDKs.
package model
