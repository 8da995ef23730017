//go:build !linux

package ar

import "os"

func adviseRandom(*os.File) {}
