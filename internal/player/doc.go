// Package player locates the external player and its launcher script, and
// parses the player's log output.
package player
