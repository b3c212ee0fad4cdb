// Package taskvault runs a task lifecycle orchestrator over a file-based
// vault: source adapters turn incoming files and mail into task documents,
// a reasoning engine drafts a plan for each, a security policy decides which
// plans need human approval, and executors carry out what was approved.
//
// Every task is a markdown document with YAML frontmatter living in exactly
// one bucket directory (Needs_Action, In_Progress, Plans, Pending_Approval,
// Approved, Done, Rejected, Error). Humans participate by editing those
// documents; the orchestrator picks decisions up on its next sweep.
package taskvault
