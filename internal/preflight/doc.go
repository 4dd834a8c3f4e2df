// Package preflight provides readiness checks for the upload server and the
// filesystem paths rtsync depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs failures as warnings. A
//     failing check never blocks startup since the queue must accept
//     evidence while offline.
//   - The CLI "rtsync status" command uses the same checks to display health.
package preflight
