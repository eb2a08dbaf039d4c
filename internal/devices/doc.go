// Package devices holds the camera catalog: device IDs with their labels and
// stream URLs, stored as TOML and reloaded when the file changes.
package devices
