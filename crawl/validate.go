package crawl

import (
	"fmt"
	"sort"

	"github.com/use-agent/wallaby/models"
)

// ValidateArgs checks args against the crawler's declared fields. All
// violations are collected into one *models.ValidationError instead of
// failing on the first, so a task author can fix everything in one pass.
//
// Violations, in the order they are reported:
//   - required fields absent from args
//   - args keys declared by neither field set
//   - present fields whose value does not match the declared type
func ValidateArgs(c Crawler, args models.Args) error {
	required := c.RequiredFields()
	optional := c.OptionalFields()

	for name := range required {
		if _, dup := optional[name]; dup {
			return models.NewCrawlError(models.ErrCodeInternal,
				fmt.Sprintf("crawler %q declares %q as both required and optional", c.Name(), name), nil)
		}
	}

	verr := &models.ValidationError{}

	for name := range required {
		if _, ok := args[name]; !ok {
			verr.Missing = append(verr.Missing, name)
		}
	}
	sort.Strings(verr.Missing)

	all := AllFields(c)
	for name := range args {
		if _, ok := all[name]; !ok {
			verr.Extra = append(verr.Extra, name)
		}
	}
	sort.Strings(verr.Extra)

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ft, ok := all[name]
		if !ok {
			continue
		}
		v := args[name]
		if !ft.Matches(v) {
			verr.Mismatched = append(verr.Mismatched, models.TypeMismatch{
				Field:    name,
				Expected: ft,
				Actual:   fmt.Sprintf("%T", v),
				Value:    v,
			})
		}
	}

	if verr.Any() {
		return verr
	}
	return nil
}
