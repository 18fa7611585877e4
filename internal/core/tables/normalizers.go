package tables

import (
	"regexp"
	"strings"

	"github.com/JonMunkholm/followup/internal/schema"
)

// Trim strips leading and trailing whitespace; every MDL cell goes through it.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

var (
	removedTitle   = regexp.MustCompile(`DELET|SALV`)
	excludedChild  = regexp.MustCompile(`R6|R7`)
	followUpPartNo = regexp.MustCompile(`R0|R1|R3`)
)

// keepStructureRow drops deleted or salvaged children and R6/R7 children.
func keepStructureRow(fields map[string]string) bool {
	return !removedTitle.MatchString(fields[schema.ChildTitle]) &&
		!excludedChild.MatchString(fields[schema.ChildNumber])
}

// keepFollowUpRow keeps DSOL parts whose number is an R0, R1 or R3 part.
func keepFollowUpRow(fields map[string]string) bool {
	return fields[schema.PartType] == "DSOL" && followUpPartNo.MatchString(fields[schema.PartNumber])
}
