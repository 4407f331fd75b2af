// Package domain holds the core entities shared across the campaign engine:
// campaigns, recipients and their lifecycle states. It has no dependencies on
// storage or transport packages.
package domain
