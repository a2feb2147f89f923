package adwflow

import (
	"fmt"
	"strings"
)

// maxSlugLength caps the description portion of a branch name.
const maxSlugLength = 30

// classPrefixes maps an issue class to its branch prefix. Unknown classes
// default to "chore".
var classPrefixes = map[IssueClass]string{
	ClassChore:   "chore",
	ClassBug:     "fix",
	ClassFeature: "feat",
	ClassPatch:   "patch",
}

// BranchName derives a deterministic, git-safe branch name from workflow
// identity and classification.
//
// Form: {prefix}-{issueNumber}-{workflowID}-{slug}, omitting the issue
// number segment when no issue number is present. Uniqueness follows from
// the workflow id.
func BranchName(workflowID string, issueNumber int, description string, class IssueClass) string {
	prefix, ok := classPrefixes[class]
	if !ok {
		prefix = "chore"
	}

	slug := slugify(description)

	if issueNumber > 0 {
		return fmt.Sprintf("%s-%d-%s-%s", prefix, issueNumber, workflowID, slug)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, workflowID, slug)
}

// slugify normalizes a description: lowercase, spaces to hyphens, strip
// anything that is not alphanumeric or hyphen, truncate to maxSlugLength.
func slugify(description string) string {
	s := strings.ToLower(description)
	s = strings.ReplaceAll(s, " ", "-")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}

	slug := b.String()
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}
