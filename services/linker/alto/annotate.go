// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package alto links the named entity tags of ALTO OCR documents.
//
// Every NamedEntityTag element with a LABEL attribute is resolved and, when
// the label matches, gets a URI attribute holding the entity identifier.
// Everything else in the document is written back byte for byte.
package alto

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/AleutianAI/EntityLink/services/linker/entity"
)

// ErrNotALTO is returned for documents whose root element is not alto.
var ErrNotALTO = errors.New("not an ALTO document")

const (
	rootElement   = "alto"
	tagElement    = "NamedEntityTag"
	labelAttr     = "LABEL"
	uriAttr       = "URI"
	altoNamespace = "http://www.loc.gov/standards/alto/"
)

// BatchResolver resolves a batch of distinct mentions.
type BatchResolver interface {
	ResolveBatch(ctx context.Context, mentions []string) (map[string]entity.Result, error)
}

// Stats describes one annotated document.
type Stats struct {
	// Tags is the number of NamedEntityTag elements with a label.
	Tags int `json:"tags"`

	// Labels is the number of distinct labels resolved.
	Labels int `json:"labels"`

	// Linked is the number of tags that received a URI.
	Linked int `json:"linked"`
}

// Annotator writes entity identifiers into ALTO documents.
//
// # Thread Safety
//
// Safe for concurrent use if the BatchResolver is.
type Annotator struct {
	resolver BatchResolver
	logger   *slog.Logger
}

// NewAnnotator creates an Annotator. A nil logger uses slog.Default().
func NewAnnotator(resolver BatchResolver, logger *slog.Logger) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Annotator{resolver: resolver, logger: logger}
}

// tagSpan locates the raw start tag of one NamedEntityTag.
type tagSpan struct {
	start, end int64
	label      string
}

// Annotate links the entity tags of one document.
//
// # Description
//
// Labels are resolved as one batch; tags sharing a label share its result.
// A tag that already has a URI attribute gets its value replaced when the
// label matches and is left alone otherwise.
//
// # Inputs
//
//   - ctx: Cancels the batch resolution.
//   - src: The ALTO document.
//
// # Outputs
//
//   - []byte: The annotated document. src itself when nothing matched.
//   - Stats: Tag, label and link counts.
//   - error: ErrNotALTO, a wrapped XML syntax error, or the batch error.
func (a *Annotator) Annotate(ctx context.Context, src []byte) ([]byte, Stats, error) {
	spans, err := scan(src)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Tags: len(spans)}
	if len(spans) == 0 {
		return src, stats, nil
	}

	labels := make([]string, 0, len(spans))
	seen := make(map[string]struct{}, len(spans))
	for _, s := range spans {
		if _, ok := seen[s.label]; ok {
			continue
		}
		seen[s.label] = struct{}{}
		labels = append(labels, s.label)
	}
	stats.Labels = len(labels)

	results, err := a.resolver.ResolveBatch(ctx, labels)
	if err != nil {
		return nil, stats, fmt.Errorf("resolving %d labels: %w", len(labels), err)
	}

	var out bytes.Buffer
	out.Grow(len(src) + 64*len(spans))
	var last int64
	for _, s := range spans {
		res, ok := results[s.label]
		if !ok || !res.Matched() {
			continue
		}
		out.Write(src[last:s.start])
		out.Write(withURI(src[s.start:s.end], entity.URI(res.Match.ID)))
		last = s.end
		stats.Linked++
	}
	if stats.Linked == 0 {
		return src, stats, nil
	}
	out.Write(src[last:])

	a.logger.Debug("alto document annotated",
		slog.Int("tags", stats.Tags),
		slog.Int("labels", stats.Labels),
		slog.Int("linked", stats.Linked),
	)
	return out.Bytes(), stats, nil
}

// scan returns the labelled NamedEntityTag start tags of src in document
// order.
func scan(src []byte) ([]tagSpan, error) {
	dec := xml.NewDecoder(bytes.NewReader(src))
	dec.CharsetReader = charsetReader

	var (
		spans    []tagSpan
		rootSeen bool
	)
	for {
		start := dec.InputOffset()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !rootSeen {
				return nil, fmt.Errorf("%w: %v", ErrNotALTO, err)
			}
			return nil, fmt.Errorf("parsing ALTO: %w", err)
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootSeen {
			if el.Name.Local != rootElement {
				return nil, fmt.Errorf("%w: root element is %q", ErrNotALTO, el.Name.Local)
			}
			if ns := namespaceOf(el); ns != "" && !strings.HasPrefix(ns, altoNamespace) {
				return nil, fmt.Errorf("%w: namespace %q", ErrNotALTO, ns)
			}
			rootSeen = true
			continue
		}
		if el.Name.Local != tagElement {
			continue
		}
		for _, attr := range el.Attr {
			if attr.Name.Space == "" && attr.Name.Local == labelAttr && attr.Value != "" {
				spans = append(spans, tagSpan{start: start, end: dec.InputOffset(), label: attr.Value})
				break
			}
		}
	}
	if !rootSeen {
		return nil, fmt.Errorf("%w: no root element", ErrNotALTO)
	}
	return spans, nil
}

// namespaceOf returns the default namespace declared on the root element,
// or the namespace bound to its prefix.
func namespaceOf(el xml.StartElement) string {
	want := "xmlns"
	if el.Name.Space != "" {
		want = el.Name.Space
	}
	for _, attr := range el.Attr {
		switch {
		case want == "xmlns" && attr.Name.Space == "" && attr.Name.Local == "xmlns":
			return attr.Value
		case want != "xmlns" && attr.Name.Space == "xmlns" && attr.Name.Local == want:
			return attr.Value
		}
	}
	return ""
}

// withURI returns the raw start tag with its URI attribute set to uri.
func withURI(tag []byte, uri string) []byte {
	var val bytes.Buffer
	val.WriteString(uriAttr + `="`)
	_ = xml.EscapeText(&val, []byte(uri))
	val.WriteByte('"')

	if from, to, ok := attrSpan(tag, uriAttr); ok {
		out := make([]byte, 0, len(tag)+val.Len())
		out = append(out, tag[:from]...)
		out = append(out, val.Bytes()...)
		return append(out, tag[to:]...)
	}

	end := len(tag) - 1
	if end > 0 && tag[end-1] == '/' {
		end--
	}
	// Keep any whitespace before the closing bracket after the new attribute.
	insert := end
	for insert > 0 && isSpace(tag[insert-1]) {
		insert--
	}
	out := make([]byte, 0, len(tag)+val.Len()+1)
	out = append(out, tag[:insert]...)
	out = append(out, ' ')
	out = append(out, val.Bytes()...)
	return append(out, tag[insert:]...)
}

// attrSpan returns the byte range of the unprefixed attribute name="value"
// in a raw start tag. Attributes are stepped over one by one, so text inside
// a quoted value is never taken for an attribute. tag must be well formed.
func attrSpan(tag []byte, name string) (from, to int, ok bool) {
	skipSpace := func(i int) int {
		for i < len(tag) && isSpace(tag[i]) {
			i++
		}
		return i
	}

	i := 1
	for i < len(tag) && !isSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}
	for {
		i = skipSpace(i)
		if i >= len(tag) || tag[i] == '/' || tag[i] == '>' {
			return 0, 0, false
		}
		start := i
		for i < len(tag) && tag[i] != '=' && !isSpace(tag[i]) {
			i++
		}
		attr := string(tag[start:i])

		i = skipSpace(i)
		if i >= len(tag) || tag[i] != '=' {
			return 0, 0, false
		}
		i = skipSpace(i + 1)
		if i >= len(tag) || (tag[i] != '"' && tag[i] != '\'') {
			return 0, 0, false
		}
		closing := bytes.IndexByte(tag[i+1:], tag[i])
		if closing < 0 {
			return 0, 0, false
		}
		i += closing + 2

		if attr == name {
			return start, i, true
		}
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// charsetReader accepts spellings of UTF-8 other than "utf-8". Other
// encodings are rejected: tags are spliced by byte offset, which only holds
// while the decoder reads the source bytes unchanged.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	if name, _ := htmlindex.Name(enc); name != "utf-8" {
		return nil, fmt.Errorf("unsupported encoding %q", label)
	}
	return input, nil
}
