package main

import (
	"pulse/cmd/cmd"
	"pulse/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
