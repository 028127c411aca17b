// Package render provides pure helpers for writing evaluated text back into
// a paragraph's runs.
//
// These functions do not depend on the main stencil package, avoiding circular
// dependencies.
//
// # Structure Organization
//
//   - runmap.go: reconstruction of a paragraph's logical text and its offset to run mapping
//   - redistribute.go: span replacement and proportional redistribution across runs
//
// # Key Functions
//
// BuildRunMap: Concatenates the runs of a paragraph and records, for each run,
// where its text starts in the logical text.
//
// ReplaceSpan: Writes replacement text over a span of the logical text. A span
// owned by one run is edited in place. A span straddling several runs is
// redistributed over those runs in proportion to their original lengths.
//
// ApplyReplacements: Applies many span replacements to one paragraph, falling back
// to Rebuild (clear and rebuild, formatting of later runs lost) only when a span
// cannot be mapped onto the runs at all.
//
// # Design Principles
//
// The concatenation of run texts after any operation equals the intended
// logical text exactly. Formatting boundaries may move when an expression
// expands or shrinks; run formatting descriptors themselves are never touched.
package render
