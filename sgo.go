package main

import (
	"github.com/priyxstudio/sgo/cmd"
)

func main() {
	cmd.Execute()
}
