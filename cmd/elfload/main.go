// Copyright 2021 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command elfload loads and relocates Thumb-2 / ARMv7-M relocatable ELF
// objects using the loader package, either one at a time or in bulk
// against a directory of build output.
package main

func main() {
	Execute()
}
