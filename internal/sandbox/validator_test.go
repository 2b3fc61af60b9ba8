package sandbox

import (
	"testing"

	"github.com/fctr-id/okta-ai-agent/internal/toolerrors"
	"github.com/stretchr/testify/require"
)

const validProbe = `package main

import (
	"encoding/json"
	"fmt"
	"os"
)

func main() {
	result := map[string]any{"status": "ok"}
	out, _ := json.Marshal(result)
	fmt.Fprintln(os.Stdout, string(out))
}
`

func TestValidateAcceptsWellFormedProbe(t *testing.T) {
	require.Nil(t, Validate(validProbe, Policy{}))
}

func TestValidateRejectsSyntaxError(t *testing.T) {
	terr := Validate("package main\nfunc main( {", Policy{})
	require.NotNil(t, terr)
	require.Equal(t, toolerrors.KindUnsafeProgram, terr.Kind)
}

func TestValidateRejectsDisallowedImport(t *testing.T) {
	src := `package main

import (
	"os/exec"
)

func main() {
	exec.Command("ls").Run()
}
`
	terr := Validate(src, Policy{})
	require.NotNil(t, terr)
	require.Equal(t, toolerrors.KindUnsafeProgram, terr.Kind)
}

func TestValidateRejectsNonGetVerb(t *testing.T) {
	src := `package main

import "net/http"

func main() {
	http.NewRequest("POST", "https://example.com", nil)
}
`
	terr := Validate(src, Policy{})
	require.NotNil(t, terr)
	require.Equal(t, toolerrors.KindUnsafeProgram, terr.Kind)
}

func TestValidateRejectsHostOutsideAllowlist(t *testing.T) {
	src := `package main

import "net/http"

func main() {
	http.Get("https://evil.example.com/data")
}
`
	terr := Validate(src, Policy{AllowedHosts: []string{"tenant.okta.com"}})
	require.NotNil(t, terr)
	require.Equal(t, toolerrors.KindUnsafeProgram, terr.Kind)
}

func TestValidateAllowsHostOnAllowlist(t *testing.T) {
	src := `package main

import "net/http"

func main() {
	http.Get("https://tenant.okta.com/api/v1/users")
}
`
	require.Nil(t, Validate(src, Policy{AllowedHosts: []string{"tenant.okta.com"}}))
}

func TestFirstJSONDocumentTrimsExtraOutput(t *testing.T) {
	doc, extra, err := firstJSONDocument([]byte(`{"a":1}` + "\nnoise after document\n"))
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(doc))
	require.Equal(t, "noise after document", extra)
}

func TestFirstJSONDocumentRejectsGarbage(t *testing.T) {
	_, _, err := firstJSONDocument([]byte("not json at all"))
	require.Error(t, err)
}
