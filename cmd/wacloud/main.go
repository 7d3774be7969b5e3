package main

import "github.com/vietddude/wacloud/internal/cli"

func main() {
	cli.Execute()
}
