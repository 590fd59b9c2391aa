// Package classify decides whether an email represents an actionable
// item and extracts the fields needed to build a task or calendar event.
//
// Two classifiers implement the Classifier interface:
//   - RuleClassifier: heuristics over sender, subject and body. Always
//     available, never fails.
//   - OpenAIClassifier: asks a chat model for a structured JSON decision,
//     falling back to the rule classifier on any error.
//
// Both produce the same Classification value: creation decision with
// confidence, cleaned title, notes, optional due date, optional meeting
// details and an optional user-defined category.
package classify
