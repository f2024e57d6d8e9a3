package main

import "github.com/GoPolymarket/attestgate/internal/cli"

func main() {
	cli.Execute()
}
