// Palettron - recolour images with another image's palette
//
// Palettron takes the distinct colours of one image and repaints a second
// image with them, locally or through a small HTTP service.
//
// Copyright (c) 2026 The Palettron Authors
// Licensed under the MIT License
package main

import (
	"os"

	"github.com/non4ik-sdk/palettron/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
