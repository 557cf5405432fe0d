package main

import (
	"github.com/tansive/sensorthings/internal/cli"
	"github.com/tansive/sensorthings/internal/common/logtrace"
)

func init() {
	logtrace.InitLogger("info")
}

func main() {
	cli.Execute()
}
