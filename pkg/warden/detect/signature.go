// Package detect implements the content-type detection core: the magic
// number signature table, the byte-prefix classifier, and the verdict
// engine that compares a file's declared extension against its classified
// content type.
package detect

import (
	"sort"
)

// ContentTypeUnknown is returned by the classifier when no registered
// pattern matches the file's leading bytes.
const ContentTypeUnknown = "unknown"

// Signature declares one content type: the byte-prefix patterns that
// identify it and the file extensions it legitimately appears under.
// Extensions are grouped per container family, so a DOCX file (a ZIP
// container) declared as ".docx" matches the zip signature's accepted set.
type Signature struct {
	// ContentType is the identifier reported by the classifier.
	ContentType string

	// Patterns are the magic byte sequences, matched at Offset from the
	// start of the file. A signature may have several (e.g. GIF87a and
	// GIF89a).
	Patterns [][]byte

	// Offset is where the patterns are anchored. Most formats carry the
	// magic in the first bytes; tar puts "ustar" at byte 257.
	Offset int

	// Extensions are the claimed extensions accepted for this content
	// type, normalized (lowercase, no leading dot).
	Extensions []string
}

// Table is an immutable, ordered signature table. Patterns are checked in
// a fixed priority order: anchored-at-zero patterns first, then longest
// pattern first, declaration order as the tie-break, so overlapping short
// prefixes resolve deterministically.
type Table struct {
	patterns []patternEntry
	accepted map[string]map[string]bool
	maxLen   int
}

type patternEntry struct {
	offset      int
	bytes       []byte
	contentType string
}

// NewTable builds a Table from an ordered list of signatures.
func NewTable(sigs []Signature) *Table {
	t := &Table{
		accepted: make(map[string]map[string]bool, len(sigs)),
	}

	for _, sig := range sigs {
		exts := make(map[string]bool, len(sig.Extensions))
		for _, ext := range sig.Extensions {
			exts[NormalizeExtension(ext)] = true
		}
		t.accepted[sig.ContentType] = exts

		for _, pat := range sig.Patterns {
			t.patterns = append(t.patterns, patternEntry{
				offset:      sig.Offset,
				bytes:       pat,
				contentType: sig.ContentType,
			})
			if need := sig.Offset + len(pat); need > t.maxLen {
				t.maxLen = need
			}
		}
	}

	// Patterns at the file start win over offset patterns, longer
	// patterns win over shorter ones, declaration order breaks ties.
	sort.SliceStable(t.patterns, func(i, j int) bool {
		if t.patterns[i].offset != t.patterns[j].offset {
			return t.patterns[i].offset < t.patterns[j].offset
		}
		return len(t.patterns[i].bytes) > len(t.patterns[j].bytes)
	})

	return t
}

// HeaderLen returns the number of leading bytes needed to match the
// longest registered pattern.
func (t *Table) HeaderLen() int {
	return t.maxLen
}

// Accepts reports whether the given content type legitimately appears
// under the given normalized extension.
func (t *Table) Accepts(contentType, ext string) bool {
	exts, ok := t.accepted[contentType]
	if !ok {
		return false
	}
	return exts[ext]
}

// Knows reports whether the table has a signature for the given
// normalized extension, i.e. whether any content type accepts it.
func (t *Table) Knows(ext string) bool {
	for _, exts := range t.accepted {
		if exts[ext] {
			return true
		}
	}
	return false
}

// DefaultTable returns the built-in signature table. The set follows the
// formats commonly abused in extension-spoofing: documents, images,
// archives, and executables.
func DefaultTable() *Table {
	return NewTable(defaultSignatures)
}

var defaultSignatures = []Signature{
	{
		ContentType: "png",
		Patterns:    [][]byte{{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}},
		Extensions:  []string{"png"},
	},
	{
		ContentType: "ole",
		Patterns:    [][]byte{{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}},
		Extensions:  []string{"doc", "xls", "ppt", "msi"},
	},
	{
		ContentType: "pdf",
		Patterns:    [][]byte{[]byte("%PDF")},
		Extensions:  []string{"pdf"},
	},
	{
		ContentType: "jpeg",
		Patterns:    [][]byte{{0xff, 0xd8, 0xff}},
		Extensions:  []string{"jpg", "jpeg", "jpe"},
	},
	{
		ContentType: "gif",
		Patterns:    [][]byte{[]byte("GIF87a"), []byte("GIF89a")},
		Extensions:  []string{"gif"},
	},
	{
		ContentType: "zip",
		Patterns: [][]byte{
			{'P', 'K', 0x03, 0x04},
			{'P', 'K', 0x05, 0x06},
			{'P', 'K', 0x07, 0x08},
		},
		Extensions: []string{"zip", "docx", "xlsx", "pptx", "odt", "ods", "odp", "jar", "epub", "apk"},
	},
	{
		ContentType: "rar",
		Patterns:    [][]byte{[]byte("Rar!\x1a\x07")},
		Extensions:  []string{"rar"},
	},
	{
		ContentType: "7z",
		Patterns:    [][]byte{{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}},
		Extensions:  []string{"7z"},
	},
	{
		ContentType: "gzip",
		Patterns:    [][]byte{{0x1f, 0x8b}},
		Extensions:  []string{"gz", "tgz"},
	},
	{
		ContentType: "bzip2",
		Patterns:    [][]byte{[]byte("BZ")},
		Extensions:  []string{"bz2"},
	},
	{
		ContentType: "elf",
		Patterns:    [][]byte{{0x7f, 'E', 'L', 'F'}},
		Extensions:  []string{"elf", "so"},
	},
	{
		ContentType: "pe",
		Patterns:    [][]byte{[]byte("MZ")},
		Extensions:  []string{"exe", "dll", "sys", "scr"},
	},
	{
		ContentType: "iso",
		Patterns:    [][]byte{[]byte("CD001")},
		Offset:      0x8001, // primary volume descriptor, one byte in
		Extensions:  []string{"iso"},
	},
	{
		ContentType: "tar",
		Patterns:    [][]byte{[]byte("ustar")},
		Offset:      257,
		Extensions:  []string{"tar"},
	},
	{
		ContentType: "shell-script",
		Patterns:    [][]byte{[]byte("#!/bin/bash"), []byte("#!/bin/sh")},
		Extensions:  []string{"sh", "bash"},
	},
	{
		ContentType: "python-script",
		Patterns:    [][]byte{[]byte("#!/usr/bin/python"), []byte("#!/usr/bin/env python")},
		Extensions:  []string{"py"},
	},
}
