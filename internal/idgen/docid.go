package idgen

import (
	"fmt"
	"regexp"
)

var docIDPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9_.-]*[A-Za-z0-9])?$`)

// ValidateDocID checks that id is usable as a document id taken from a URL
// path. Rules: letters, digits, dot, dash and underscore; must start and end
// with a letter or digit; max 128 characters.
func ValidateDocID(id string) error {
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	if len(id) > 128 {
		return fmt.Errorf("document id too long (max 128 characters)")
	}
	if !docIDPattern.MatchString(id) {
		return fmt.Errorf("document id %q is invalid: must match %s", id, docIDPattern.String())
	}
	return nil
}
