// Package main is the entry point for modcompose.
package main

func main() {
	Execute()
}
