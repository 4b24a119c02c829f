package macos

import "strings"

// bootstrapperTemplate is written to MacOS/<main binary name> when
// settings.Mac.UseBootstrapper is set, with the real binary copied beside
// it as MacOS/<main binary name>-bin; no separate __bootstrapper file is
// written (see BuildAppBundle in app.go). It sources the
// user's shell profile files before exec-ing the real binary, so the
// app's child-process launches inherit the user's $PATH — carried
// verbatim from the original source's bootstrapper content (see
// SPEC_FULL.md §4).
const bootstrapperTemplate = `#!/usr/bin/env sh
if [ -f "$HOME/.bash_profile" ]; then
  . "$HOME/.bash_profile"
fi
if [ -f "$HOME/.zprofile" ]; then
  . "$HOME/.zprofile"
fi
if [ -f "$HOME/.profile" ]; then
  . "$HOME/.profile"
fi
if [ -f "$HOME/.bashrc" ]; then
  . "$HOME/.bashrc"
fi
if [ -f "$HOME/.zshrc" ]; then
  . "$HOME/.zshrc"
fi
exec "$(dirname "$0")/__REALBIN__" "$@"
`

// BootstrapperScript renders the bootstrapper shell script that execs
// realBinaryName once the user's shell profile has been sourced.
func BootstrapperScript(realBinaryName string) string {
	return strings.ReplaceAll(bootstrapperTemplate, "__REALBIN__", realBinaryName)
}
