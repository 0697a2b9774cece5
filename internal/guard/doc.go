// Package guard provides canonical path validation for the workspace
// gateway.
//
// Two levels of checking are exposed:
//   - Guard.Validate: full validation of a requested path against a project
//     root, on canonical (symlink-resolved) paths, followed by blocked and
//     allowed glob pattern filtering (doublestar syntax).
//   - SanitizeSubpath + WithinBase: lexical sanitization for sub-paths
//     inside an extracted artifact tree, where segments are dropped rather
//     than resolved.
//
// All failures are reported as structured results with an internal reason;
// the package never panics for expected conditions. The facade maps denials
// to outward responses that do not reveal whether the target exists.
package guard
