package main

import "github.com/ScalabilityIssues/validation-service/cmd/cli"

func main() {
	cli.Execute()
}
