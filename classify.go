package adwflow

import (
	"context"
	"fmt"
	"strings"
)

// IssueClass is the classification of an issue. The value doubles as the
// agent command used to plan that kind of change.
type IssueClass string

const (
	ClassChore   IssueClass = "/chore"
	ClassBug     IssueClass = "/bug"
	ClassFeature IssueClass = "/feature"
	ClassPatch   IssueClass = "/patch"

	// ClassUnclassified is the agent's "could not classify" sentinel. It is
	// fatal at the classify step.
	ClassUnclassified IssueClass = "0"
)

// knownClasses are the classes a workflow may proceed with.
var knownClasses = []IssueClass{ClassChore, ClassBug, ClassFeature, ClassPatch}

// IsKnown reports whether the class is one a workflow may proceed with.
// Anything else, including values invented by a collaborator, is treated
// as unclassified.
func (c IssueClass) IsKnown() bool {
	for _, known := range knownClasses {
		if c == known {
			return true
		}
	}
	return false
}

// Command returns the plan command for this class.
func (c IssueClass) Command() Command {
	return Command(c)
}

// Classifier maps free-text issue content to an issue class. An
// unclassified outcome is returned as ErrUnclassifiable; callers must treat
// it as fatal to the workflow.
type Classifier interface {
	Classify(ctx context.Context, workflowID, issueContent string) (IssueClass, error)
}

// Keyword lists for offline classification, checked in priority order.
var (
	featureKeywords = []string{
		"implement", "add", "create", "feature", "new", "build",
		"dashboard", "component",
	}
	bugKeywords = []string{
		"fix bug", "bug:", "error:", "broken", "crash", "failing test",
	}
	choreKeywords = []string{
		"refactor", "upgrade", "dependency", "dependencies", "configure",
		"scaffold", "cleanup", "rename", "document",
	}
)

// KeywordClassifier classifies issues offline by keyword matching. It is
// the fallback when no agent should be consulted.
//
// Priority: feature keywords, then bug keywords, then chore keywords,
// defaulting to feature. Matching is case-insensitive.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(_ context.Context, _, issueContent string) (IssueClass, error) {
	content := strings.ToLower(issueContent)

	for _, kw := range featureKeywords {
		if strings.Contains(content, kw) {
			return ClassFeature, nil
		}
	}
	for _, kw := range bugKeywords {
		if strings.Contains(content, kw) {
			return ClassBug, nil
		}
	}
	for _, kw := range choreKeywords {
		if strings.Contains(content, kw) {
			return ClassChore, nil
		}
	}
	return ClassFeature, nil
}

// AgentClassifier delegates classification to the external agent and
// extracts the class label from its free-form reply.
type AgentClassifier struct {
	executor *RetryExecutor
	modelSet ModelSet
}

// NewAgentClassifier creates an agent-backed classifier using the given
// retry executor.
func NewAgentClassifier(executor *RetryExecutor, modelSet ModelSet) *AgentClassifier {
	return &AgentClassifier{executor: executor, modelSet: modelSet}
}

// Classify implements Classifier by invoking the classify command and
// searching the reply for one of the known labels or the literal "0". If
// no label is found, the last non-empty line of the reply is taken as the
// label; an unknown label is ErrUnclassifiable.
func (c *AgentClassifier) Classify(ctx context.Context, workflowID, issueContent string) (IssueClass, error) {
	result := c.executor.Invoke(ctx, AgentRequest{
		AgentName:  "classifier",
		Command:    CmdClassifyIssue,
		Args:       []string{issueContent},
		WorkflowID: workflowID,
		ModelSet:   c.modelSet,
	})
	if !result.Success {
		return "", fmt.Errorf("classify issue: %s", result.Err)
	}

	class := ExtractClass(result.Output)
	if !class.IsKnown() {
		return "", ErrUnclassifiable
	}
	return class, nil
}

// ExtractClass pulls an issue class label out of free-form response text.
// It searches for a known label or the literal "0", falling back to the
// last non-empty line of the response when no pattern matches.
func ExtractClass(response string) IssueClass {
	for _, class := range knownClasses {
		if strings.Contains(response, string(class)) {
			return class
		}
	}
	if strings.TrimSpace(response) == string(ClassUnclassified) {
		return ClassUnclassified
	}

	lines := strings.Split(strings.TrimSpace(response), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line != "" {
			return IssueClass(line)
		}
	}
	return ClassUnclassified
}
