// Package server is the HTTP front of the runtime. It maps chat turns,
// session management and health onto REST endpoints and streams turn
// progress over Server-Sent Events.
package server
