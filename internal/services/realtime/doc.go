// Package realtime implements the whiteboard session and broadcast
// coordinator.
//
// It keeps WebSocket lifecycle, presence tracking, and per-board fan-out
// isolated from the rest of the product so board CRUD and account services
// stay simple request/response collaborators.
package realtime
