// Package relevance decides which parts of fetched pages are worth keeping.
//
// Pages are split along their markdown heading hierarchy. Each heading group
// is compared with the question's entities and keywords: terms are pulled
// from the group's headings or text (named entities plus keyphrases seeded by
// the targets) and compared by embedding similarity. Accepted groups are
// inserted into the vector store with their position and heading path.
package relevance
