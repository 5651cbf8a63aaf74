package main

import "github.com/odant/conan-freeimage/cmd/fipkg/internal"

func main() {
	internal.Execute()
}
