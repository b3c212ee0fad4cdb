// Package policy implements the security gate that decides how much human
// involvement a proposed action requires before it may execute. Evaluation is
// deterministic and side-effect free; ambiguous or incomplete input always
// resolves to the strictest verdict.
package policy
