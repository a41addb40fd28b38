package main

import "github.com/keshon/fadebot/internal/cli"

func main() {
	cli.Execute()
}
