// Package domutil holds the "try candidates in order, take the first hit" search
// used by the DOM extractor and the challenge detector.
package domutil

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FirstMatch tries candidates in order and returns the first value find accepts,
// along with the candidate that produced it.
func FirstMatch[T any](candidates []string, find func(candidate string) (T, bool)) (T, string, bool) {
	for _, c := range candidates {
		if v, ok := find(c); ok {
			return v, c, true
		}
	}
	var zero T
	return zero, "", false
}

// FirstSelection returns the matches of the first selector that finds anything
// under root. goquery treats a selector that fails to compile as matching nothing.
func FirstSelection(root *goquery.Selection, selectors []string) (*goquery.Selection, bool) {
	sel, _, ok := FirstMatch(selectors, func(s string) (*goquery.Selection, bool) {
		found := root.Find(s)
		return found, found.Length() > 0
	})
	return sel, ok
}

// FirstText returns the cleaned text of the first element matched by the first
// productive selector, or "" when none matches.
func FirstText(root *goquery.Selection, selectors []string) string {
	sel, ok := FirstSelection(root, selectors)
	if !ok {
		return ""
	}
	return CleanText(sel.First().Text())
}

// AnyMatch reports which selector, if any, has at least one match under root.
func AnyMatch(root *goquery.Selection, selectors []string) (string, bool) {
	_, s, ok := FirstMatch(selectors, func(s string) (struct{}, bool) {
		return struct{}{}, root.Find(s).Length() > 0
	})
	return s, ok
}

// ContainsAny reports the first term found in text, case-insensitively.
func ContainsAny(text string, terms []string) (string, bool) {
	lower := strings.ToLower(text)
	_, t, ok := FirstMatch(terms, func(term string) (struct{}, bool) {
		term = strings.ToLower(strings.TrimSpace(term))
		return struct{}{}, term != "" && strings.Contains(lower, term)
	})
	return t, ok
}

// CleanText trims s and collapses inner whitespace runs to one space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
