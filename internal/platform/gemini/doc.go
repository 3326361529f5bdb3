// Package gemini provides an implementation of the discovery.Source interface
// backed by Google's Gemini API.
//
// This package is an infrastructure adapter: it translates between the
// refresh core's hierarchy queries and the Gemini generative API without
// exposing any of the external service's details to the core. Each query
// renders a per-level prompt that asks for a strict JSON listing, calls
// client.Models.GenerateContent, and parses the answer into discovery.Node
// values.
//
// Failures are classified into the discovery error taxonomy: rate limits and
// server-side API errors wrap discovery.ErrTransient so the caller's retry
// policy can act on them; rejected requests, safety-blocked prompts and
// unparseable payloads wrap discovery.ErrPermanent. All raw-response
// interpretation stays inside this package.
package gemini
