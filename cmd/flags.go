// File: cmd/flags.go
package cmd

import (
	"fmt"
	"strings"
)

// validateFormat checks that format is one of the formats a command supports
func validateFormat(format string, valid ...string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s. Valid options are '%s'", format, strings.Join(valid, "', '"))
}
