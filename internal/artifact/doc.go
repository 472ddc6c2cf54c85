// Package artifact makes actions idempotent against on-disk artifacts. The
// Cache wrapper skips recomputation when the target already exists, and
// publishes new results by writing to a temporary sibling path and
// atomically renaming it onto the target, so a partially-written artifact
// is never observable at the final path. The rename is the sole durability
// guarantee and relies on target and temp sharing one filesystem, which
// sibling placement ensures.
package artifact
