// Package registry holds the declarative side of the resolver: coordinate
// computers, data specs, and the Database that collects them. Declarations
// are plain immutable config values; nothing here performs resolution.
package registry
