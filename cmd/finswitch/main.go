// Package main is the entry point for the finswitch front-end processor.
package main

func main() {
	Execute()
}
