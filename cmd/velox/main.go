package main

import (
	"os"

	_ "github.com/tliron/commonlog/simple"

	"github.com/veloxvm/velox/pkg/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
