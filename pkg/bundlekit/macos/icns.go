package macos

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	icns "github.com/jackmordaunt/icns/v2"
	"github.com/nfnt/resize"

	"github.com/crateforge/bundler/pkg/bundlekit"
)

// maxICNSDimension is the largest bitmap size ICNS packs (the "icp1024"
// family entry); §4.5 step 2 requires downscaling anything larger to the
// next lower power of two.
const maxICNSDimension = 1024

// nextLowerPowerOfTwo returns the largest power of two <= n, capped at
// maxICNSDimension.
func nextLowerPowerOfTwo(n int) int {
	if n >= maxICNSDimension {
		return maxICNSDimension
	}
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// isPowerOfTwo reports whether n is an exact power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// BuildIconResource implements §4.5 step 2: collect icon source paths
// from settings. If any source is already a ".icns" file, it's copied
// as-is to dest. Otherwise the first source image that decodes and
// encodes successfully is written as the ICNS file, after a non-square or
// non-power-of-two image is downscaled with Lanczos-3 to the next lower
// power of two (capped at maxICNSDimension); the jackmordaunt/icns/v2
// encoder derives the ICNS icon types from that one image's pixel
// dimensions. Later source images are not used, and the "@2x" density
// marker in a filename is not consulted.
//
// No-usable-icons is a fatal error only when iconPaths is non-empty (an
// empty icon list is a legitimate "no icon" build).
func BuildIconResource(iconPaths []string, dest string) error {
	if len(iconPaths) == 0 {
		return nil
	}

	for _, path := range iconPaths {
		if strings.EqualFold(filepath.Ext(path), ".icns") {
			return bundlekit.CopyFile(path, dest)
		}
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create icns %s: %w", dest, err)
	}
	defer out.Close()

	var encoded bool
	for _, path := range iconPaths {
		img, err := decodeImage(path)
		if err != nil {
			continue
		}

		bounds := img.Bounds()
		w, h := bounds.Dx(), bounds.Dy()
		if w != h || !isPowerOfTwo(w) {
			size := uint(nextLowerPowerOfTwo(max(w, h)))
			img = resize.Resize(size, size, img, resize.Lanczos3)
		}

		if err := icns.Encode(out, img); err != nil {
			continue
		}
		encoded = true
		break
	}

	if !encoded {
		return fmt.Errorf("no usable icon sources among %v", iconPaths)
	}
	return nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".png") {
		return png.Decode(f)
	}
	img, _, err := image.Decode(f)
	return img, err
}

// isDensity2x reports whether the icon filename carries the "@2x"
// density marker used throughout the original source's icon pipeline.
func isDensity2x(path string) bool {
	return strings.Contains(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), "@2x")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
