// Package compose implements the module registry and capability composer.
//
// A module is a Descriptor: a name plus an init function producing a
// Contribution of capabilities (named operations) and configuration fields.
// Compose runs every init once, in order, and produces a Composition:
//
//   - capabilities form a strict union. A name contributed twice is a
//     DUPLICATE_CAPABILITY error, never silently shadowed.
//   - configuration fields merge over the base shape (ctx, meta,
//     ctxOverride) with last-write-wins per path, so later modules can
//     refine fields introduced by earlier ones.
//
// Composition.NewBuilder layers field defaults and caller overrides into
// the effective configuration and checks it: every required field present,
// every value of its declared type. The resulting Builder exposes exactly
// the union of operations. Calling an operation returns a new Builder with
// the operation's configuration patch merged in; the receiver never
// changes, so all operations stay available through any chain of calls.
//
// Compositions and builders are immutable after construction and may be
// shared across goroutines without locking. Registry wraps the build-once
// lifecycle for hosts that register at startup.
//
// Modules can be written in Go (New) or declared in CUE and compiled to an
// ir.ModuleSpec (FromSpec).
package compose
