package authenticode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func helperCommandContext(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestSignNoopWithoutThumbprint(t *testing.T) {
	t.Parallel()
	err := Sign(context.Background(), "test.exe")
	require.NoError(t, err)
}

func TestSignOnceBuildsDualSignatureArgs(t *testing.T) {
	t.Parallel()

	var calls [][]string
	so := defaultOptions()
	so.execCC = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return helperCommandContext(ctx, name, args...)
	}
	so.thumbprint = "ABCDEF1234567890"
	so.timestampURL = "http://timestamp.example.com"
	so.tsp = true

	require.NoError(t, so.signOnce(context.Background(), "test.exe", "sha1", false))
	require.NoError(t, so.signOnce(context.Background(), "test.exe", "sha256", true))

	require.Len(t, calls, 2)
	require.Contains(t, calls[0], "/sha1")
	require.Contains(t, calls[0], "sha1")
	require.NotContains(t, calls[0], "/as")

	require.Contains(t, calls[1], "/as")
	require.Contains(t, calls[1], "sha256")
	require.Contains(t, strings.Join(calls[1], " "), "/tr http://timestamp.example.com /td sha256")
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	fmt.Println("Successfully signed")
}
