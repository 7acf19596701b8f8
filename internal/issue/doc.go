// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing failures: ActionableError adds the
// attempted operation and remediation hints to an error, and Issue holds the
// Markdown guide the CLI renders for each class of failure.
package issue
