package msi

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/crateforge/bundler/pkg/bundleerr"
)

type execCCFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// wixTool drives candle.exe/light.exe (optionally through a Docker
// image running Wine, for cross-compiling an MSI from a non-Windows
// host) against one rendered .wxs source plus any caller-supplied
// fragment files. Shape (New/options/Package/Cleanup, the unexported
// execCC field) is grounded on the teacher's
// pkg/packagekit/wix/wix_test.go (TestWixPackage, verifyMsi's
// `&wixTool{execCC: exec.CommandContext}`).
type wixTool struct {
	execCC execCCFunc

	packageRoot    string
	mainWxsContent []byte
	fragmentPaths  []string

	wixPath        string
	dockerImage    string
	as32bit        bool
	skipValidation bool
}

// win64Define returns the candle.exe -d value the rendered .wxs's
// $(var.Win64) references resolve to: "no" for the 32-bit build, "yes"
// otherwise.
func (w *wixTool) win64Define() string {
	if w.as32bit {
		return "no"
	}
	return "yes"
}

// Option configures a wixTool.
type Option func(*wixTool)

func As32bit() Option                { return func(w *wixTool) { w.as32bit = true } }
func SkipValidation() Option         { return func(w *wixTool) { w.skipValidation = true } }
func WithWix(path string) Option     { return func(w *wixTool) { w.wixPath = path } }
func WithDocker(image string) Option { return func(w *wixTool) { w.dockerImage = image } }
func WithFragments(paths []string) Option {
	return func(w *wixTool) { w.fragmentPaths = paths }
}

// New returns a wixTool that will compile mainWxsContent (plus any
// WithFragments paths) against the files under packageRoot.
func New(packageRoot string, mainWxsContent []byte, opts ...Option) (*wixTool, error) {
	w := &wixTool{
		execCC:         exec.CommandContext,
		packageRoot:    packageRoot,
		mainWxsContent: mainWxsContent,
		wixPath:        "",
	}
	for _, apply := range opts {
		apply(w)
	}
	return w, nil
}

// Package compiles and links the MSI, returning its output path.
// Mirrors candle.exe (compile .wxs -> .wixobj) then light.exe (link
// .wixobj[s] -> .msi), the two-stage WiX toolchain the teacher's test
// and the original source's `wix::build_wix_app_installer` both drive.
func (w *wixTool) Package(ctx context.Context) (string, error) {
	wxsPath := filepath.Join(w.packageRoot, "product.wxs")
	if err := os.WriteFile(wxsPath, w.mainWxsContent, 0o644); err != nil {
		return "", bundleerr.NewIOError("write wxs source", wxsPath, err)
	}
	for _, frag := range w.fragmentPaths {
		if err := ValidateFragment(frag); err != nil {
			return "", err
		}
	}

	sources := append([]string{wxsPath}, w.fragmentPaths...)
	wixobjs := make([]string, 0, len(sources))
	candlePath := filepath.Join(w.wixToolDir(), "candle.exe")
	for _, src := range sources {
		obj := src[:len(src)-len(filepath.Ext(src))] + ".wixobj"
		args := []string{src, "-out", obj, "-dWin64=" + w.win64Define()}
		if w.as32bit {
			args = append(args, "-arch", "x86")
		} else {
			args = append(args, "-arch", "x64")
		}
		if _, err := w.run(ctx, candlePath, args...); err != nil {
			return "", err
		}
		wixobjs = append(wixobjs, obj)
	}

	msiPath := filepath.Join(w.packageRoot, "out.msi")
	lightPath := filepath.Join(w.wixToolDir(), "light.exe")
	lightArgs := append(append([]string{}, wixobjs...), "-out", msiPath, "-ext", "WixUtilExtension")
	if w.skipValidation {
		lightArgs = append(lightArgs, "-sval")
	}
	if _, err := w.run(ctx, lightPath, lightArgs...); err != nil {
		return "", err
	}

	return msiPath, nil
}

// Cleanup removes intermediate .wixobj/.wxs build artifacts.
func (w *wixTool) Cleanup() {
	matches, _ := filepath.Glob(filepath.Join(w.packageRoot, "*.wixobj"))
	for _, m := range matches {
		os.Remove(m)
	}
	os.Remove(filepath.Join(w.packageRoot, "product.wxs"))
}

func (w *wixTool) wixToolDir() string {
	if w.wixPath != "" {
		return w.wixPath
	}
	return "."
}

// run invokes name either directly or, when a Docker image is
// configured, wrapped in `docker run` against packageRoot — the same
// wine-under-docker cross-compile path the teacher's test exercises
// with felfert/wix.
func (w *wixTool) run(ctx context.Context, name string, args ...string) (string, error) {
	if w.dockerImage != "" {
		dockerArgs := append([]string{
			"run", "--rm",
			"-v", w.packageRoot + ":" + w.packageRoot,
			"-w", w.packageRoot,
			w.dockerImage,
			filepath.Base(name),
		}, args...)
		return w.execOut(ctx, "docker", dockerArgs...)
	}
	return w.execOut(ctx, name, args...)
}

func (w *wixTool) execOut(ctx context.Context, name string, args ...string) (string, error) {
	cmd := w.execCC(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), bundleerr.NewToolFailureError(name, exitCode(err), out.String(), err)
	}
	return out.String(), nil
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
