// Package extractor matches free text against a known concept
// vocabulary using several strategies: plain substring containment,
// statistical keyword scoring, named-entity recognition, and embedding
// similarity. The ensemble strategy fuses named-entity and keyword
// matches, boosting concepts found by more than one strategy.
//
// A failing strategy never aborts extraction. Its contribution is
// empty and the failure is logged, so callers always get whatever the
// healthy strategies produced.
package extractor
