// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package compositor

import _ "embed"

//go:embed shaders/blit.wgsl
var blitShaderSource string

// BlitShaderSource returns the WGSL source of the blit pipeline.
func BlitShaderSource() string {
	return blitShaderSource
}
