// Package discovery provides interfaces and implementations for querying
// external data sources about the place hierarchy. It abstracts the details
// of LLM API integration (Gemini), allowing the refresh core to pull each
// level's children without coupling to a specific external service. All raw
// response interpretation happens behind this boundary; the core only ever
// sees validated, typed nodes.
package discovery
