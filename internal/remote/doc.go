// Package remote is the boundary to the demo books API: create, update,
// list and delete. The sync engine only ever distinguishes success from
// failure; everything else about the wire format lives here.
package remote
