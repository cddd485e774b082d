package main

import "github.com/erp/attendance/internal/interfaces/cli"

func main() {
	cli.Execute()
}
