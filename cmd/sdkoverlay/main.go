package main

import "github.com/goplus/sdkoverlay/cmd/sdkoverlay/internal"

func main() {
	internal.Execute()
}
