// Package main is the entry point for the geocoding service.
package main

import "github.com/parishstaq/geocoding-service/internal/cli"

func main() {
	cli.Execute()
}
