// Package upload performs single delivery attempts of queued evidence to the
// warranty server.
//
// An Adapter streams one multipart request per call and never retries; the
// sync engine owns retry policy. Every result, including transport errors and
// unreadable payloads, comes back as an Outcome whose failure kind is decided
// in one place (Classify) so stricter handling of individual kinds can be
// added without touching the caller's control flow.
package upload
