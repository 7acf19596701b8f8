// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/isoload/isoload/internal/issue"
	"github.com/isoload/isoload/pkg/adapter"
	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/lazymod"
	"github.com/isoload/isoload/pkg/namespace"
)

// classifyError maps a command failure to the issue guide that explains it.
// Zero means no guide applies.
func classifyError(err error) issue.Id {
	var ae *issue.ActionableError
	switch {
	case errors.Is(err, adapter.ErrLint):
		return issue.LintFailedId
	case errors.Is(err, adapter.ErrUnknownModule):
		return issue.UnknownModuleId
	case errors.Is(err, adapter.ErrUnsupported):
		return issue.UnsupportedFeatureId
	case errors.Is(err, adapter.ErrWiring):
		return issue.ModuleWiringFailedId
	case errors.Is(err, artifact.ErrResolution):
		return issue.ArtifactNotResolvedId
	case errors.Is(err, namespace.ErrSymbolNotFound):
		return issue.SymbolNotFoundId
	case errors.As(err, &ae) && (ae.Operation == "load configuration" || ae.Operation == "validate configuration"):
		return issue.ConfigLoadFailedId
	}
	return 0
}

// renderError prints the issue guide for err, if any, followed by the error.
// An ExitError without a cause prints nothing; its command already reported.
func renderError(w io.Writer, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	if id := classifyError(err); id != 0 {
		if guide := issue.Get(id); guide != nil {
			rendered, renderErr := guide.Render("dark")
			if renderErr != nil {
				log.Warn("failed to render issue guide", "issue", id, "err", renderErr)
			} else {
				fmt.Fprint(w, rendered)
			}
		}
	}
	fmt.Fprintf(w, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))
}

// formatErrorForDisplay uses the ActionableError format when available. A
// materialization failure is shown with its stage.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	var me *lazymod.MaterializeError
	if errors.As(err, &me) && verbose {
		return fmt.Sprintf("%v\n  stage: %s", err, me.Stage)
	}
	return err.Error()
}
