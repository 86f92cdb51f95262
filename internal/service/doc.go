// Package service holds the long-lived state of a JuriRH process.
//
// A Service is built once in main from the configuration and an embedder and
// handed to the HTTP and MCP layers. It serves one index at a time through an
// atomic pointer: Reload and Rebuild load a complete new retriever first and
// only then swap it in, so in-flight searches finish on the index they
// started with and a failed reload leaves the current index untouched.
//
// Watch adds hot reload: when another process publishes a new index in the
// configured directory, the service picks it up after a short debounce.
package service
