// Package prefix provides a CSS vendor-prefixing pass for a conservative
// browser support range (old WebKit, IE 10/11, pre-Quantum Firefox). It
// rewrites declarations only; selectors, at-rules and formatting are left
// for the minifier that runs after it.
package prefix

import "strings"

// propertyPrefixes lists properties that get prefixed copies of the whole
// declaration, with the unprefixed form last so it wins the cascade.
var propertyPrefixes = map[string][]string{
	"user-select":          {"-webkit-", "-moz-", "-ms-"},
	"appearance":           {"-webkit-", "-moz-"},
	"backdrop-filter":      {"-webkit-"},
	"clip-path":            {"-webkit-"},
	"mask":                 {"-webkit-"},
	"mask-image":           {"-webkit-"},
	"hyphens":              {"-webkit-", "-ms-"},
	"tab-size":             {"-moz-"},
	"text-size-adjust":     {"-webkit-", "-ms-"},
	"box-decoration-break": {"-webkit-"},
	"flex":                 {"-webkit-", "-ms-"},
	"flex-basis":           {"-webkit-"},
	"flex-direction":       {"-webkit-", "-ms-"},
	"flex-flow":            {"-webkit-", "-ms-"},
	"flex-grow":            {"-webkit-"},
	"flex-shrink":          {"-webkit-"},
	"flex-wrap":            {"-webkit-", "-ms-"},
	"align-content":        {"-webkit-"},
	"align-items":          {"-webkit-"},
	"align-self":           {"-webkit-"},
	"justify-content":      {"-webkit-"},
	"order":                {"-webkit-"},
}

// valueExpansions maps property:value pairs to the full replacement
// declaration list (prefixed values rather than prefixed properties).
var valueExpansions = map[string][]string{
	"display:flex": {
		"display:-webkit-box", "display:-ms-flexbox", "display:-webkit-flex", "display:flex",
	},
	"display:inline-flex": {
		"display:-webkit-inline-box", "display:-ms-inline-flexbox", "display:-webkit-inline-flex", "display:inline-flex",
	},
	"position:sticky": {
		"position:-webkit-sticky", "position:sticky",
	},
}

// Apply returns css with vendor-prefixed declarations inserted. A
// declaration directly preceded by its own prefixed form is left alone,
// so running Apply on already-prefixed output is a no-op.
func Apply(css string) string {
	var b strings.Builder
	b.Grow(len(css) + len(css)/4)

	depth := 0      // brace nesting; declarations live at depth >= 1
	parens := 0     // inside url(...) or media conditions, never split
	start := 0      // start of the current chunk
	inDecl := false // current chunk follows a '{' or ';'
	prev := ""      // previous declaration in this rule body, normalized

	flush := func(end int, delim byte) {
		chunk := css[start:end]
		if inDecl && parens == 0 {
			out := expand(chunk, prev)
			b.WriteString(out)
			prev = normalize(lastDecl(out))
		} else {
			b.WriteString(chunk)
			prev = ""
		}
		if end < len(css) {
			b.WriteByte(delim)
		}
		start = end + 1
	}

	for i := 0; i < len(css); i++ {
		switch css[i] {
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		case '{':
			flush(i, '{')
			depth++
			inDecl = true
			prev = ""
		case '}':
			flush(i, '}')
			if depth > 0 {
				depth--
			}
			inDecl = false
			prev = ""
		case ';':
			flush(i, ';')
			inDecl = depth >= 1
		}
	}
	if start < len(css) {
		chunk := css[start:]
		if inDecl && parens == 0 {
			b.WriteString(expand(chunk, prev))
		} else {
			b.WriteString(chunk)
		}
	}
	return b.String()
}

// expand rewrites a single "property: value" declaration, returning either
// the original chunk or the prefixed expansion. prev is the normalized
// declaration preceding this one; when it already equals the expansion's
// last prefixed form, the input was prefixed before and passes through.
func expand(decl, prev string) string {
	colon := strings.IndexByte(decl, ':')
	if colon < 0 {
		return decl
	}
	prop := strings.ToLower(strings.TrimSpace(decl[:colon]))
	value := strings.TrimSpace(decl[colon+1:])

	if prop == "" || value == "" || strings.HasPrefix(prop, "-") {
		return decl
	}

	if repl, ok := valueExpansions[prop+":"+strings.ToLower(value)]; ok {
		if prev == normalize(repl[len(repl)-2]) {
			return decl
		}
		return strings.Join(repl, ";")
	}

	prefixes, ok := propertyPrefixes[prop]
	if !ok {
		return decl
	}
	if prev == normalize(prefixes[len(prefixes)-1]+prop+":"+value) {
		return decl
	}
	var b strings.Builder
	for _, pre := range prefixes {
		b.WriteString(pre)
		b.WriteString(prop)
		b.WriteByte(':')
		b.WriteString(value)
		b.WriteByte(';')
	}
	b.WriteString(prop)
	b.WriteByte(':')
	b.WriteString(value)
	return b.String()
}

// lastDecl returns the final declaration of a possibly expanded chunk.
func lastDecl(chunk string) string {
	if i := strings.LastIndexByte(chunk, ';'); i >= 0 {
		return chunk[i+1:]
	}
	return chunk
}

// normalize strips whitespace and lowercases a declaration for comparison.
func normalize(decl string) string {
	return strings.ToLower(strings.Join(strings.Fields(decl), ""))
}
