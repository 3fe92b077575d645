package main

import "github.com/eliseohh/anydownbot/internal/cli"

func main() {
	cli.ExecutePreflight()
}
