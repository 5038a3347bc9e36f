// Package navigation implements proximity navigation over a task set: nearest
// task selection and the Session state machine that turns a live position
// stream into route updates and arrival announcements.
package navigation
