// Package extract turns fetched markup into fixed-shape records.
//
// Every text-bearing field goes through Text, the single node-to-text rule:
// descendant text in document order, joined by a space, whitespace runs
// collapsed to one space, ends trimmed. Field rules are independent; a rule
// whose structure is absent leaves its field empty without affecting others.
package extract
