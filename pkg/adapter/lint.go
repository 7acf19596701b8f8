// SPDX-License-Identifier: MPL-2.0

package adapter

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"

	"github.com/isoload/isoload/pkg/artifact"
	"github.com/isoload/isoload/pkg/namespace"
)

const (
	// LintName is the registry name of the rule-driven lint module.
	LintName = "lint"
	// LintCoordinate is the default coordinate of the lint module.
	LintCoordinate artifact.Coordinate = "io.isoload:lint:"
	// LintVersion is the default version of the lint module.
	LintVersion = "1.0.0-RC14"

	// RulesResource is the resource every rule set is published under. All
	// occurrences across the namespace are loaded, in location order.
	RulesResource = "META-INF/isoload/rules.toml"
	// LoggerSymbol is the bridged logging facade the lint module reports to.
	LoggerSymbol = namespace.DefaultBridgePrefix + "Logger"
	// MaxLineLengthRule is the rule id of the line length check.
	MaxLineLengthRule = "max-line-length"
)

type (
	// Lint is a rule-driven linter and fixer. Its rules are regular expressions
	// published by the module artifact (and its dependencies) as RulesResource.
	// Rules with a replacement correct their findings; other findings fail the
	// run with a *LintError.
	//
	// Lint resolves in a bridged namespace so that it can reach the host's
	// logger through LoggerSymbol.
	Lint struct{}

	// LintSettings is the processing settings built by Configure.
	LintSettings struct {
		Rules         []LintRule
		MaxLineLength int
		Script        bool
		Logger        *log.Logger
	}

	// LintRule is one compiled rule.
	LintRule struct {
		ID          string
		Message     string
		Pattern     *regexp.Regexp
		Replace     *string
		SkipScripts bool
		// Source is the resource the rule was loaded from.
		Source string
	}

	ruleFile struct {
		Rules []ruleDef `toml:"rule"`
	}

	ruleDef struct {
		ID          string  `toml:"id"`
		Pattern     string  `toml:"pattern"`
		Message     string  `toml:"message"`
		Replace     *string `toml:"replace"`
		SkipScripts bool    `toml:"skip_scripts"`
	}

	lintRunner struct {
		settings *LintSettings
	}
)

// Name implements Adapter.
func (Lint) Name() string { return LintName }

// Policy implements Adapter.
func (Lint) Policy() namespace.PolicyKind { return namespace.PolicyBridged }

// Coordinate implements Adapter.
func (Lint) Coordinate() artifact.Coordinate { return LintCoordinate }

// DefaultVersion implements Adapter.
func (Lint) DefaultVersion() string { return LintVersion }

// Concurrent implements Adapter. Runners hold no mutable state.
func (Lint) Concurrent() bool { return true }

// EntryPoints implements Adapter. Script mode binds runScript instead of run.
func (Lint) EntryPoints(cfg Config) []EntryPoint {
	run := "isoload.lint.Facade.run"
	if cfg.Script {
		run = "isoload.lint.Facade.runScript"
	}
	return []EntryPoint{
		{
			Role:      RoleConstruct,
			Symbol:    "isoload.lint.Facade.create",
			Kind:      namespace.KindFunc,
			Signature: "func(isoload.lint.ProcessingSettings) isoload.lint.Facade",
		},
		{Role: RoleSettings, Symbol: "isoload.lint.ProcessingSettings", Kind: namespace.KindType},
		{Role: RoleRun, Symbol: run, Kind: namespace.KindFunc, Signature: "func(string) isoload.lint.Detektion"},
		{Role: RoleLogger, Symbol: LoggerSymbol, Kind: namespace.KindValue},
	}
}

// Configure implements Adapter. It loads every rule set in the namespace and
// applies the optional external configuration file.
func (l Lint) Configure(ctx context.Context, b *Bindings, cfg Config) (Settings, error) {
	logger, err := l.logger(b)
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(ctx, b.Namespace)
	if err != nil {
		return nil, err
	}

	settings := &LintSettings{Rules: rules, Script: cfg.Script, Logger: logger}
	if cfg.ConfigFile == "" {
		return settings, nil
	}

	lc, err := LoadLintConfig(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	settings.MaxLineLength = lc.MaxLineLength
	settings.Rules = slices.DeleteFunc(settings.Rules, func(r LintRule) bool {
		return slices.Contains(lc.Disabled, r.ID)
	})
	return settings, nil
}

// Construct implements Adapter.
func (l Lint) Construct(_ *Bindings, s Settings) (Runner, error) {
	settings, ok := s.(*LintSettings)
	if !ok {
		return nil, fmt.Errorf("module %s: unexpected settings type %T", l.Name(), s)
	}
	return &lintRunner{settings: settings}, nil
}

func (l Lint) logger(b *Bindings) (*log.Logger, error) {
	sym, ok := b.Symbol(RoleLogger)
	if !ok {
		return nil, &WiringError{Module: l.Name(), Symbol: LoggerSymbol, Role: RoleLogger, Reason: "entry point not bound"}
	}
	logger, ok := sym.Value.(*log.Logger)
	if !ok || logger == nil {
		return nil, &WiringError{
			Module: l.Name(),
			Symbol: LoggerSymbol,
			Role:   RoleLogger,
			Reason: fmt.Sprintf("host value has type %T, want *log.Logger", sym.Value),
		}
	}
	return logger.WithPrefix(LintName), nil
}

// loadRules reads every RulesResource visible in ns. The first definition of
// a rule id wins.
func loadRules(ctx context.Context, ns namespace.Resolver) ([]LintRule, error) {
	refs, err := ns.Resources(RulesResource)
	if err != nil {
		return nil, fmt.Errorf("enumerating %s: %w", RulesResource, err)
	}

	var rules []LintRule
	seen := make(map[string]bool)
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		defs, err := readRuleFile(ns, ref)
		if err != nil {
			return nil, err
		}
		for _, def := range defs {
			if seen[def.ID] {
				continue
			}
			seen[def.ID] = true
			rule, err := compileRule(def, ref)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		}
	}
	return rules, nil
}

func readRuleFile(ns namespace.Resolver, ref namespace.ResourceRef) (_ []ruleDef, err error) {
	rc, err := ns.OpenRef(ref)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", ref, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", ref, err)
	}
	var file ruleFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ref, err)
	}
	return file.Rules, nil
}

func compileRule(def ruleDef, ref namespace.ResourceRef) (LintRule, error) {
	if def.ID == "" {
		return LintRule{}, fmt.Errorf("%s: rule without id", ref)
	}
	pattern, err := regexp.Compile(def.Pattern)
	if err != nil {
		return LintRule{}, fmt.Errorf("%s: rule %s: %w", ref, def.ID, err)
	}
	message := def.Message
	if message == "" {
		message = def.ID
	}
	return LintRule{
		ID:          def.ID,
		Message:     message,
		Pattern:     pattern,
		Replace:     def.Replace,
		SkipScripts: def.SkipScripts,
		Source:      ref.String(),
	}, nil
}

// Run applies every rule line by line. Findings of rules with a replacement
// are corrected in the output; any other finding fails the run. Rule findings
// carry input columns even after earlier rules rewrote the line; the line
// length finding is about the corrected line.
func (r *lintRunner) Run(input string, report Reporter) (string, error) {
	s := r.settings

	lines := strings.Split(input, "\n")
	var uncorrected []Diagnostic
	emit := func(d Diagnostic) {
		if d.Corrected {
			s.Logger.Debug("corrected", "rule", d.Rule, "line", d.Line, "column", d.Column)
		} else {
			s.Logger.Warn(d.Detail, "rule", d.Rule, "line", d.Line, "column", d.Column)
			uncorrected = append(uncorrected, d)
		}
		if report != nil {
			report(d)
		}
	}

	for i, original := range lines {
		line := original
		offsets := identityOffsets(len(line))
		for _, rule := range s.Rules {
			if s.Script && rule.SkipScripts {
				continue
			}
			matches := rule.Pattern.FindAllStringSubmatchIndex(line, -1)
			for _, m := range matches {
				emit(Diagnostic{
					Rule:      rule.ID,
					Detail:    rule.Message,
					Line:      i + 1,
					Column:    utf8.RuneCountInString(original[:offsets[m[0]]]) + 1,
					Corrected: rule.Replace != nil,
				})
			}
			if len(matches) > 0 && rule.Replace != nil {
				line, offsets = rewrite(rule.Pattern, *rule.Replace, line, offsets, matches)
			}
		}
		if s.MaxLineLength > 0 && utf8.RuneCountInString(line) > s.MaxLineLength {
			emit(Diagnostic{
				Rule:   MaxLineLengthRule,
				Detail: fmt.Sprintf("line is longer than %d characters", s.MaxLineLength),
				Line:   i + 1,
				Column: s.MaxLineLength + 1,
			})
		}
		lines[i] = line
	}

	if len(uncorrected) > 0 {
		return "", &LintError{Diagnostics: uncorrected}
	}
	return strings.Join(lines, "\n"), nil
}

// identityOffsets maps every byte of an unmodified line, plus its end, to itself.
func identityOffsets(n int) []int {
	offsets := make([]int, n+1)
	for i := range offsets {
		offsets[i] = i
	}
	return offsets
}

// rewrite replaces matches in line and carries along the input offset of every
// byte, so that findings of later rules point into the user's input. Replaced
// text maps to the start of the match it replaced.
func rewrite(re *regexp.Regexp, repl, line string, offsets []int, matches [][]int) (string, []int) {
	var b strings.Builder
	next := make([]int, 0, len(offsets))
	last := 0
	for _, m := range matches {
		b.WriteString(line[last:m[0]])
		next = append(next, offsets[last:m[0]]...)
		expanded := re.ExpandString(nil, repl, line, m)
		b.Write(expanded)
		for range expanded {
			next = append(next, offsets[m[0]])
		}
		last = m[1]
	}
	b.WriteString(line[last:])
	next = append(next, offsets[last:]...)
	return b.String(), next
}

// defaultRules is the rule set published by the lint stub artifact.
const defaultRules = `[[rule]]
id = "trailing-whitespace"
pattern = '[ \t]+$'
message = "Trailing whitespace"
replace = ""

[[rule]]
id = "tab-indentation"
pattern = '^\t+'
message = "Tab used for indentation"
replace = "    "

[[rule]]
id = "forbidden-comment"
pattern = 'FIXME'
message = "Forbidden FIXME comment"
skip_scripts = true
`

// StubResources implements StubResourcer.
func (Lint) StubResources() map[string]string {
	return map[string]string{RulesResource: defaultRules}
}
