// Package main provides the portalaudit CLI entrypoint.
package main

func main() {
	Execute()
}
