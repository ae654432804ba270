// Package classify implements the heuristic text-vs-code classifier applied
// to outgoing messages. Classification runs once, client side, before
// transmission; receivers trust the result as-is.
package classify

import "regexp"

// Result is the classifier verdict. Language is empty when IsCode is false.
type Result struct {
	IsCode   bool
	Language string
}

// Rule pairs a pattern with the language label it implies.
type Rule struct {
	Pattern  *regexp.Regexp
	Language string
}

// Rules is the full classification table. Evaluation order is declaration
// order and the first match wins, even when a later rule is more specific.
var Rules = []Rule{
	{regexp.MustCompile(`(?m)^(function|const|let|var|class|import|export|if|for|while)\s`), "javascript"},
	{regexp.MustCompile(`(?m)^(def|class|import|for|if|while|try|except)\s`), "python"},
	{regexp.MustCompile(`(?m)^(public|private|class|interface|void|int|String)\s`), "java"},
	{regexp.MustCompile(`(?m)^(#include|using|namespace|class|void|int)\s`), "cpp"},
	{regexp.MustCompile(`(?m)^(function|foreach|class|interface|namespace)\s`), "csharp"},
	{regexp.MustCompile(`(?m)^(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)\s`), "sql"},
	{regexp.MustCompile(`(?s)\{.*".*".*\}`), "json"},
	{regexp.MustCompile(`(?s)<\w+[^>]*>.*</\w+>`), "xml"},
	{regexp.MustCompile(`(?m)^<!DOCTYPE|<html|<head|<body`), "html"},
	{regexp.MustCompile(`(?ms)^\.[\w-]+\s*\{.*\}`), "css"},
}

// Classify reports whether text looks like source code and, if so, which
// language it resembles. It is total and deterministic: no input is an
// error, and no match means plain text.
func Classify(text string) Result {
	for _, r := range Rules {
		if r.Pattern.MatchString(text) {
			return Result{IsCode: true, Language: r.Language}
		}
	}
	return Result{}
}
