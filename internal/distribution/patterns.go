// Package distribution decides which decoder plugins receive a raw ingest
// message. Each plugin owns a set of inclusion and exclusion regular
// expressions loaded from <root>/distribution/*.xml; a message header is
// routed to every registered plugin whose exclusions do not match it and whose
// inclusions do.
package distribution

import (
	"encoding/xml"
	"fmt"
	"os"
	"regexp"
	"strings"

	"ingest-router/internal/localization"
)

// PatternSet is one plugin's compiled header rules. It is immutable once
// published by the registry.
type PatternSet struct {
	Plugin           string              `json:"plugin"`
	InclusionSources []string            `json:"inclusions"`
	ExclusionSources []string            `json:"exclusions"`
	Sources          []localization.File `json:"sources"`
	Inclusions       []*regexp.Regexp    `json:"-"`
	Exclusions       []*regexp.Regexp    `json:"-"`
}

// NoPossibleMatch reports whether the set has no usable inclusion pattern.
func (ps *PatternSet) NoPossibleMatch() bool {
	return ps == nil || len(ps.Inclusions) == 0
}

// Matches reports whether header is wanted by this plugin. Exclusions are
// checked first; a pattern matches when it is found anywhere in the header.
func (ps *PatternSet) Matches(header string) bool {
	if ps == nil {
		return false
	}
	for _, re := range ps.Exclusions {
		if re.MatchString(header) {
			return false
		}
	}
	for _, re := range ps.Inclusions {
		if re.MatchString(header) {
			return true
		}
	}
	return false
}

// merge appends other's patterns to a copy of ps.
func (ps *PatternSet) merge(other *PatternSet) *PatternSet {
	out := &PatternSet{Plugin: ps.Plugin}
	out.InclusionSources = append(append(out.InclusionSources, ps.InclusionSources...), other.InclusionSources...)
	out.ExclusionSources = append(append(out.ExclusionSources, ps.ExclusionSources...), other.ExclusionSources...)
	out.Sources = append(append(out.Sources, ps.Sources...), other.Sources...)
	out.Inclusions = append(append(out.Inclusions, ps.Inclusions...), other.Inclusions...)
	out.Exclusions = append(append(out.Exclusions, ps.Exclusions...), other.Exclusions...)
	return out
}

// patternDocument is the XML layout of a distribution file.
type patternDocument struct {
	XMLName  xml.Name `xml:"requestPatterns"`
	Plugin   string   `xml:"plugin,attr"`
	Regex    []string `xml:"regex"`
	Excludes []string `xml:"regexExclude"`
}

// PatternError describes one pattern that could not be compiled.
type PatternError struct {
	Plugin  string
	File    string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("plugin %s: invalid pattern %q in %s: %v", e.Plugin, e.Pattern, e.File, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// ParsePatternFile reads and compiles one distribution file. Patterns that
// fail to compile are returned as PatternErrors and left out of the set; the
// returned error is non-nil only when the document itself is unreadable.
func ParsePatternFile(file localization.File) (*PatternSet, []*PatternError, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", file.Path, err)
	}
	return parsePatterns(data, file)
}

func parsePatterns(data []byte, file localization.File) (*PatternSet, []*PatternError, error) {
	var doc patternDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", file.Path, err)
	}
	set, failures := compileDocument(doc, file)
	return set, failures, nil
}

func compileDocument(doc patternDocument, file localization.File) (*PatternSet, []*PatternError) {
	plugin := strings.TrimSpace(doc.Plugin)
	if plugin == "" {
		plugin = localization.BaseName(file.Name)
	}

	set := &PatternSet{
		Plugin:  plugin,
		Sources: []localization.File{file},
	}

	var failures []*PatternError
	compile := func(raw string) *regexp.Regexp {
		re, err := regexp.Compile(raw)
		if err != nil {
			failures = append(failures, &PatternError{Plugin: plugin, File: file.Name, Pattern: raw, Err: err})
			return nil
		}
		return re
	}

	for _, raw := range doc.Regex {
		if re := compile(raw); re != nil {
			set.Inclusions = append(set.Inclusions, re)
			set.InclusionSources = append(set.InclusionSources, re.String())
		}
	}
	for _, raw := range doc.Excludes {
		if re := compile(raw); re != nil {
			set.Exclusions = append(set.Exclusions, re)
			set.ExclusionSources = append(set.ExclusionSources, re.String())
		}
	}

	return set, failures
}

// NewPatternSet compiles a pattern set in memory. It is used by the check
// command and tests; invalid patterns are reported the same way as for files.
func NewPatternSet(plugin string, inclusions, exclusions []string) (*PatternSet, []*PatternError) {
	doc := patternDocument{Plugin: plugin, Regex: inclusions, Excludes: exclusions}
	return compileDocument(doc, localization.File{Name: plugin + ".xml"})
}
