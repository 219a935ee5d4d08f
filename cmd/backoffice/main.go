// Package main is the entry point for the backoffice server.
package main

func main() {
	Execute()
}
