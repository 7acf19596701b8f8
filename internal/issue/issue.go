// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

const (
	ConfigLoadFailedId Id = iota + 1
	UnknownModuleId
	ArtifactNotResolvedId
	ModuleWiringFailedId
	UnsupportedFeatureId
	LintFailedId
	SymbolNotFoundId
)

type (
	// Id identifies an issue guide.
	Id int

	// MarkdownMsg is the Markdown body of a guide.
	MarkdownMsg string

	// HttpLink is a documentation link appended to a guide.
	HttpLink string

	// Issue is a rendered-on-demand remediation guide.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

func (i *Issue) Id() Id { return i.id }

func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Render renders the guide with the glamour style at stylePath (or a
// standard style name such as "dark" or "notty").
func (i *Issue) Render(stylePath string) (string, error) {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(b.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

isoload reads ` + "`config.cue`" + ` from its configuration directory, or the
file given with ` + "`--config`" + `.

## Things you can try
- Show the effective configuration:
~~~
$ isoload config show
~~~
- Check the file against the schema: ` + "`repository`" + ` is a string,
  ` + "`log_level`" + ` is one of debug, info, warn, error and every entry of
  ` + "`modules`" + ` needs a ` + "`name`" + `.`,
	}

	unknownModuleIssue = &Issue{
		id: UnknownModuleId,
		mdMsg: `
# Unknown module

No adapter is registered under that name.

## Things you can try
- List the available modules:
~~~
$ isoload modules
~~~`,
	}

	artifactNotResolvedIssue = &Issue{
		id: ArtifactNotResolvedId,
		mdMsg: `
# Artifact could not be resolved

The module's archives were not found in the local repository.

## Layout
~~~
<repository>/<group path>/<artifact>/<version>/<artifact>-<version>.zip
~~~

## Things you can try
- Check the repository path (` + "`ISOLOAD_REPOSITORY`" + ` or ` + "`repository`" + ` in config.cue)
- Install a stub artifact for the module:
~~~
$ isoload stub lint --install
~~~`,
	}

	moduleWiringFailedIssue = &Issue{
		id: ModuleWiringFailedId,
		mdMsg: `
# Module entry points do not match

The artifact was resolved, but one of the symbols the module needs is
missing or declared with a different kind or signature. This usually means
the artifact version does not match the module adapter.

## Things you can try
- Inspect what the namespace answers for a symbol:
~~~
$ isoload lookup lint isoload.lint.Facade.create
~~~
- Use the module's default version by omitting ` + "`--version`" + `.`,
	}

	unsupportedFeatureIssue = &Issue{
		id: UnsupportedFeatureId,
		mdMsg: `
# Unsupported module option

The module cannot honor one of the requested options, for instance an
external configuration file in a format it does not read. The lint module
reads ` + "`.toml`" + `, ` + "`.cue`" + `, ` + "`.yaml`" + ` and ` + "`.yml`" + ` files.`,
	}

	lintFailedIssue = &Issue{
		id: LintFailedId,
		mdMsg: `
# Lint findings could not be corrected

Some findings have no automatic fix. Edit the reported lines, or disable the
rule in the module configuration file:
~~~toml
disabled = ["forbidden-comment"]
~~~`,
	}

	symbolNotFoundIssue = &Issue{
		id: SymbolNotFoundId,
		mdMsg: `
# Symbol not found

Neither the module's archives nor, where the delegation policy allows it,
the host namespace define the symbol. Bridged modules only reach host
symbols below the allow-listed prefixes (` + "`bridge.facade.`" + ` by default).`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		unknownModuleIssue.Id():       unknownModuleIssue,
		artifactNotResolvedIssue.Id(): artifactNotResolvedIssue,
		moduleWiringFailedIssue.Id():  moduleWiringFailedIssue,
		unsupportedFeatureIssue.Id():  unsupportedFeatureIssue,
		lintFailedIssue.Id():          lintFailedIssue,
		symbolNotFoundIssue.Id():      symbolNotFoundIssue,
	}
)

// Values returns every issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

// Get returns the issue with the given id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
