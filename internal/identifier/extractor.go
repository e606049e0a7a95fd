// Package identifier derives migration keys from photo filenames.
package identifier

import (
	"regexp"
	"strings"

	"github.com/jdavila/drive-to-crm/internal/objects"
)

// filePattern matches the fixed photo naming scheme: a literal "photo"
// prefix, a digit run, and a .jpg extension, case-insensitively.
var filePattern = regexp.MustCompile(`(?i)^photo(\d+)\.jpg$`)

// Extract derives the migration key for a filename under the given record
// type. The second return value is false when the filename does not match
// the expected pattern; that is an "invalid format" outcome for the caller,
// not an error.
//
// Leading zeros in the digit run are stripped before the key is formatted,
// so photo000005.jpg and photo5.jpg address the same record. A run of all
// zeros strips to the empty payload and will simply find no record.
func Extract(fileName string, spec objects.Spec) (string, bool) {
	m := filePattern.FindStringSubmatch(fileName)
	if m == nil {
		return "", false
	}
	digits := strings.TrimLeft(m[1], "0")
	return spec.MigrationKey(digits), true
}
