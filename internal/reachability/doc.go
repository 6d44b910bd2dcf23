// Package reachability reports best-effort connectivity as a single
// derived effectively-online signal: the probed network path status
// combined with a manual simulate-offline override. It never raises
// errors and never retries; it only reports state and notifies
// observers when the derived value actually changes.
package reachability
