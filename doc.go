/*
Package hashtrie implements the indexing core of a bitemporal store: a
persistent hash trie over row indices, its persisted read-only form, and a
k-way merge of per-generation cursors.

We implement:

1. Live tries. A LiveTrie maps identity keys (iids) to row indices of an
append-only relation. Each Add returns a new trie sharing every untouched
node with the previous one, so a snapshot can be read while writers move on.

2. Read-only tries, rebuilt from a persisted node array whose leaf pages are
loaded on first access.

3. Row pointers and the leaf merge queue, which fan in one cursor per
generation for a trie path and yield rows as a single global sort would.

4. A Bolt-backed store of generations, scans over live and persisted
generations, and a compactor.

# Technical Details

**Paths.**
Each trie level consumes one nibble of the iid, most significant nibble of
each byte first. A node's path is the list of nibbles leading to it, so a
16-byte iid addresses at most 32 levels.

**Leaves.**
A live leaf holds a sorted page and an unsorted log. When the log reaches
LogLimit entries it is stably sorted and merged into the page. A merged page
larger than PageLimit splits into a branch of leaves, one level deep.

**Order.**
Live pages are sorted by iid, then by row index descending. Relations are
sorted by iid, then by system time descending. The merge queue adds a final
tie-break on generation ordinal, more recent first.

## Persisted layout

**Catalog** (bucket "catalog"): trie key => msgpack GenerationMeta. Trie keys
are "l<level>-b<block>" in lex-hex, so they sort numerically.

**Trie** (bucket "tries", nested bucket per trie key):
  - 0x00 => trie encoding: version, node count, then nodes in post-order (root
    last). A node is a tag byte followed by 16 child ids (id+1, 0 for an
    absent bucket) for a branch, or a page index for a leaf. All integers are
    uvarints.
  - 0x01 page:uint32be => page: xxhash64 of the body (8 bytes, big-endian),
    then the msgpack-encoded columns of the page's rows.
*/
package hashtrie
