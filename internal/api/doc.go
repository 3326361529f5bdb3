// Package api implements the HTTP handlers for the atlas service: refresh
// task management, hierarchy browsing and search, statistics and operator
// authentication. Handlers translate between HTTP and the core packages and
// map internal errors to status codes in one place.
package api
