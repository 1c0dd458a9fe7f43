package main

import "github.com/paycrest/e2e/cmd"

func main() {
	cmd.Execute()
}
