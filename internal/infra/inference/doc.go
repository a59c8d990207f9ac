// Package inference talks to one or more OpenAI-compatible endpoints for chat
// completions and image generation.
//
// Endpoints are tried in rotation starting from the last one that answered.
// Each endpoint gets a bounded number of attempts with exponential backoff;
// an endpoint that is still rate limited after its last attempt is put into
// cooldown and skipped until the window passes. When every endpoint has been
// tried or is cooling down, chat calls answer with a canned fallback line
// instead of an error. Image calls never fall back.
package inference
