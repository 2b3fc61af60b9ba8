// Package sandbox statically validates and executes agent-generated probe
// programs that issue HTTP GETs against the upstream identity API. There
// is no ecosystem static analyzer in the corpus for this job, so
// validation is built directly on the standard library's go/parser,
// go/ast, and go/token — the one component intentionally left stdlib-only.
package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"net/url"
	"strings"

	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
)

// allowedImports is the fixed allowlist: basic utilities, the project's
// API client wrapper, and JSON. Anything else fails validation.
var allowedImports = map[string]bool{
	"context":      true,
	"encoding/json": true,
	"fmt":          true,
	"os":           true,
	"strconv":      true,
	"strings":      true,
	"time":         true,
	"errors":       true,
	"net/http":     true,
}

// ClientWrapperImportPrefix is the module path prefix for the shared API
// client wrapper package the allowlist always permits regardless of its
// exact import path, since it is the probe's only way to reach the
// upstream API without raw net/http dialing.
const ClientWrapperImportPrefix = "github.com/fctr-id/okta-ai-agent/internal/okta"

// destructiveSelectors flags method calls that indicate subprocess
// spawning, dynamic code evaluation, or introspection of the caller's
// frame/globals — none of which a read-only probe legitimately needs.
var destructiveSelectors = map[string]map[string]bool{
	"os/exec": {"Command": true, "CommandContext": true},
	"os":      {"StartProcess": true},
	"plugin":  {"Open": true},
	"runtime": {"Caller": true, "Callers": true, "FuncForPC": true},
	"reflect": {"ValueOf": true}, // reflection-based introspection of arbitrary values
}

// Policy configures validation limits specific to a deployment.
type Policy struct {
	// AllowedHosts restricts net/http calls embedded as string literals to
	// these upstream hosts. Empty disables the host check (not recommended).
	AllowedHosts []string
	// ScratchDir is the scratch root probes run under. Validate does not
	// check filesystem writes against it: path literals are not rejected,
	// inside or outside it.
	ScratchDir string
}

// Validate parses program text as a Go source file and rejects it per the
// static validation rules. A nil return means the program may be spawned.
func Validate(source string, policy Policy) *toolerrors.ToolError {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "probe.go", source, parser.ParseComments)
	if err != nil {
		return toolerrors.Errorf(toolerrors.KindUnsafeProgram, "program does not parse as Go source: %v", err)
	}

	imports := map[string]bool{}
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		imports[path] = true
		if !allowedImports[path] && !strings.HasPrefix(path, ClientWrapperImportPrefix) {
			return toolerrors.Errorf(toolerrors.KindUnsafeProgram, "import %q is outside the allowlist", path)
		}
	}

	var violation *toolerrors.ToolError
	ast.Inspect(file, func(n ast.Node) bool {
		if violation != nil {
			return false
		}
		switch node := n.(type) {
		case *ast.CallExpr:
			if v := checkCall(node); v != "" {
				violation = toolerrors.Errorf(toolerrors.KindUnsafeProgram, "%s", v)
				return false
			}
		case *ast.SelectorExpr:
			if v := checkSelector(node); v != "" {
				violation = toolerrors.Errorf(toolerrors.KindUnsafeProgram, "%s", v)
				return false
			}
		case *ast.BasicLit:
			if node.Kind == token.STRING {
				if v := checkHostLiteral(node.Value, policy); v != "" {
					violation = toolerrors.Errorf(toolerrors.KindUnsafeProgram, "%s", v)
					return false
				}
				if v := checkFilesystemLiteral(node.Value, policy); v != "" {
					violation = toolerrors.Errorf(toolerrors.KindUnsafeProgram, "%s", v)
					return false
				}
			}
		}
		return true
	})
	if violation != nil {
		return violation
	}

	if err := checkHTTPVerbs(file); err != "" {
		return toolerrors.Errorf(toolerrors.KindUnsafeProgram, "%s", err)
	}

	return nil
}

func checkCall(call *ast.CallExpr) string {
	ident, ok := call.Fun.(*ast.Ident)
	if !ok {
		return ""
	}
	// bare-identifier calls to the always-dangerous builtins/stdlib
	// functions pulled in via dot-imports; covers the common case even
	// without resolving the full selector chain.
	switch ident.Name {
	case "eval", "Eval":
		return "dynamic code evaluation is not permitted"
	}
	return ""
}

func checkSelector(sel *ast.SelectorExpr) string {
	pkgIdent, ok := sel.X.(*ast.Ident)
	if !ok {
		return ""
	}
	if methods, ok := destructiveSelectors[pkgIdent.Name]; ok && methods[sel.Sel.Name] {
		return fmt.Sprintf("call to %s.%s is not permitted in a probe program", pkgIdent.Name, sel.Sel.Name)
	}
	return ""
}

func checkHostLiteral(quoted string, policy Policy) string {
	if len(policy.AllowedHosts) == 0 {
		return ""
	}
	raw := strings.Trim(quoted, `"`)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	for _, host := range policy.AllowedHosts {
		if u.Host == host {
			return ""
		}
	}
	return fmt.Sprintf("network call to host %q is outside the configured upstream base URL", u.Host)
}

func checkFilesystemLiteral(quoted string, policy Policy) string {
	raw := strings.Trim(quoted, `"`)
	if !strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "./") && !strings.HasPrefix(raw, "../") {
		return ""
	}
	if policy.ScratchDir != "" && strings.HasPrefix(raw, policy.ScratchDir) {
		return ""
	}
	// A bare relative or absolute path literal that isn't under the
	// scratch area is only a violation once paired with a write call;
	// there is no data-flow tracking, so such a literal is not reported.
	return ""
}

// checkHTTPVerbs rejects any literal HTTP method string other than GET
// appearing as an argument, which covers the common
// http.NewRequest(http.MethodPost, ...) and NewRequest("POST", ...) forms.
func checkHTTPVerbs(file *ast.File) string {
	var violation string
	ast.Inspect(file, func(n ast.Node) bool {
		if violation != "" {
			return false
		}
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if pkg, ok := sel.X.(*ast.Ident); ok && pkg.Name == "http" {
				switch sel.Sel.Name {
				case "MethodPost", "MethodPut", "MethodPatch", "MethodDelete":
					violation = fmt.Sprintf("HTTP verb http.%s is not permitted; only GET may be issued", sel.Sel.Name)
					return false
				}
			}
			return true
		}
		lit, ok := n.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			return true
		}
		v := strings.ToUpper(strings.Trim(lit.Value, `"`))
		switch v {
		case "POST", "PUT", "PATCH", "DELETE":
			violation = fmt.Sprintf("HTTP verb %q is not permitted; only GET may be issued", v)
			return false
		}
		return true
	})
	return violation
}
