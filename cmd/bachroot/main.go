package main

import "bachroot/internal/bachroot"

func main() {
	bachroot.Main()
}
