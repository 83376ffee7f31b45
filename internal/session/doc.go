// Package session implements the per-user conversation engine. Each user has
// one pending Flow at most; starting a new flow always replaces the previous
// one, so two wizards can never be active for the same user.
package session
