package framework

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Filter is a function that can determine whether to run a specific test or not.
type Filter func(TestID) bool

// RegexFilters selects tests by matching their full slash-separated names.
type RegexFilters struct {
	MustMatch    RegexList
	MustNotMatch RegexList
}

func (r RegexFilters) AsFilter(id TestID) bool {
	name := id.String()
	return (!r.MustMatch.IsDefined() || r.MustMatch.AnyMatch(name)) &&
		!r.MustNotMatch.AnyMatch(name)
}

// IsDefined is true if either list has any patterns.
func (r RegexFilters) IsDefined() bool {
	return r.MustMatch.IsDefined() || r.MustNotMatch.IsDefined()
}

// RegexList is a repeatable command-line value holding regular expressions.
type RegexList struct {
	patterns []*regexp.Regexp
}

func (r RegexList) String() string {
	var ss []string
	for _, p := range r.patterns {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (r *RegexList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	r.patterns = append(r.patterns, rx)
	return nil
}

// Type is reported in pflag usage output.
func (r *RegexList) Type() string {
	return "regex"
}

// Patterns returns the source text of each pattern.
func (r RegexList) Patterns() []string {
	ret := make([]string, 0, len(r.patterns))
	for _, p := range r.patterns {
		ret = append(ret, p.String())
	}
	return ret
}

func (r RegexList) IsDefined() bool {
	return len(r.patterns) != 0
}

func (r RegexList) AnyMatch(s string) bool {
	for _, p := range r.patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// PrintFilterDescription explains which tests will not run: those excluded by filters, and those
// that may be skipped because the configuration does not provide a capability.
func PrintFilterDescription(out io.Writer, filters RegexFilters, have Capabilities, allCapabilities []string) {
	if filters.IsDefined() {
		fmt.Fprintln(out, "Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Fprintf(out, "  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Fprintln(out)
	}

	var missingCapabilities []string
	for _, c := range allCapabilities {
		if !have.Has(c) {
			missingCapabilities = append(missingCapabilities, c)
		}
	}
	if len(missingCapabilities) > 0 {
		fmt.Fprintln(out, "Some tests may be skipped because the configuration does not provide the following capabilities:")
		fmt.Fprintf(out, "  %s\n", strings.Join(missingCapabilities, ", "))
		fmt.Fprintln(out)
	}
}

// ExactMatch returns a pattern that selects the test with the given ID. Since filters are applied
// at every level of the tree, the pattern also accepts each ancestor of the test (otherwise its
// group would be excluded before the test is reached) and any subtests of the test itself. Siblings
// are not accepted: for webhook/PUT the pattern is ^webhook(/PUT(/.*)?)?$.
func ExactMatch(id TestID) string {
	var b strings.Builder
	b.WriteString("^")
	for i, name := range id.Path {
		if i > 0 {
			b.WriteString("(/")
		}
		b.WriteString(regexp.QuoteMeta(name))
	}
	b.WriteString("(/.*)?")
	for i := 1; i < len(id.Path); i++ {
		b.WriteString(")?")
	}
	b.WriteString("$")
	return b.String()
}
